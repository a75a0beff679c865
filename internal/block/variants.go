package block

// Priority values shared by todo and kanban card payloads.
var priorityValues = []string{"low", "medium", "high", "critical"}

func builtinSchemas() []*Schema {
	return []*Schema{
		{
			Variant:         VariantText,
			Name:            "Text",
			Description:     "A paragraph of rich text.",
			Category:        CategoryBasic,
			CanHaveChildren: false,
			Defaults:        map[string]any{"content": ""},
			Validate: func(data map[string]any) []FieldError {
				return requireContent(data, "content")
			},
		},
		{
			Variant:         VariantHeading,
			Name:            "Heading",
			Description:     "A section heading, levels 1 through 6.",
			Category:        CategoryBasic,
			CanHaveChildren: false,
			Defaults:        map[string]any{"content": "", "level": 1},
			Validate: func(data map[string]any) []FieldError {
				errs := requireContent(data, "content")
				errs = append(errs, rangeField(data, "level", 1, 6)...)
				return errs
			},
		},
		{
			Variant:         VariantTodo,
			Name:            "Todo",
			Description:     "A checkable task item.",
			Category:        CategoryBasic,
			CanHaveChildren: true,
			AllowedChildren: []Variant{VariantTodo, VariantText},
			Defaults:        map[string]any{"content": "", "completed": false},
			Validate: func(data map[string]any) []FieldError {
				errs := requireContent(data, "content")
				errs = append(errs, enumField(data, "priority", priorityValues...)...)
				return errs
			},
		},
		{
			Variant:         VariantImage,
			Name:            "Image",
			Description:     "An embedded image with optional dimensions.",
			Category:        CategoryBasic,
			CanHaveChildren: false,
			Defaults:        map[string]any{"url": "", "alt": ""},
			Validate: func(data map[string]any) []FieldError {
				errs := minField(data, "width", 0)
				errs = append(errs, minField(data, "height", 0)...)
				return errs
			},
		},
		{
			Variant:         VariantPage,
			Name:            "Page",
			Description:     "A top-level document that holds any content.",
			Category:        CategoryBasic,
			CanHaveChildren: true,
			Defaults:        map[string]any{"title": "Untitled", "icon": ""},
		},
		{
			Variant:         VariantRow,
			Name:            "Row",
			Description:     "A horizontal layout container for columns.",
			Category:        CategoryLayout,
			CanHaveChildren: true,
			AllowedChildren: []Variant{VariantColumn},
			Defaults:        map[string]any{},
		},
		{
			Variant:         VariantColumn,
			Name:            "Column",
			Description:     "A vertical slice of a row.",
			Category:        CategoryLayout,
			CanHaveChildren: true,
			AllowedParents:  []Variant{VariantRow},
			Defaults:        map[string]any{"width": 1.0},
			Validate: func(data map[string]any) []FieldError {
				return minField(data, "width", 0)
			},
		},
		{
			Variant:         VariantKanbanBoard,
			Name:            "Kanban Board",
			Description:     "A board of columns and swimlanes.",
			Category:        CategoryKanban,
			CanHaveChildren: true,
			AllowedChildren: []Variant{VariantKanbanColumn, VariantKanbanSwimlane},
			Defaults:        map[string]any{"title": "Board"},
		},
		{
			Variant:         VariantKanbanColumn,
			Name:            "Kanban Column",
			Description:     "A column of cards with an optional WIP limit.",
			Category:        CategoryKanban,
			CanHaveChildren: true,
			AllowedChildren: []Variant{VariantKanbanCard},
			AllowedParents:  []Variant{VariantKanbanBoard, VariantKanbanSwimlane},
			Defaults:        map[string]any{"title": ""},
			Validate: func(data map[string]any) []FieldError {
				return intMinField(data, "wipLimit", 0)
			},
		},
		{
			Variant:         VariantKanbanCard,
			Name:            "Kanban Card",
			Description:     "A work item on a board.",
			Category:        CategoryKanban,
			CanHaveChildren: true,
			AllowedChildren: []Variant{VariantTodo, VariantText, VariantAISuggestion},
			AllowedParents:  []Variant{VariantKanbanColumn},
			Defaults:        map[string]any{"title": "", "description": ""},
			Validate: func(data map[string]any) []FieldError {
				errs := enumField(data, "priority", priorityValues...)
				errs = append(errs, minField(data, "estimatedHours", 0)...)
				return errs
			},
		},
		{
			Variant:         VariantKanbanSwimlane,
			Name:            "Kanban Swimlane",
			Description:     "A horizontal grouping of board columns.",
			Category:        CategoryKanban,
			CanHaveChildren: true,
			AllowedChildren: []Variant{VariantKanbanColumn},
			AllowedParents:  []Variant{VariantKanbanBoard},
			Defaults:        map[string]any{"title": ""},
		},
		{
			Variant:         VariantTable,
			Name:            "Table",
			Description:     "A grid of rows and cells.",
			Category:        CategoryData,
			CanHaveChildren: true,
			AllowedChildren: []Variant{VariantTableRow},
			Defaults:        map[string]any{},
		},
		{
			Variant:         VariantTableRow,
			Name:            "Table Row",
			Description:     "One row of a table.",
			Category:        CategoryData,
			CanHaveChildren: true,
			AllowedChildren: []Variant{VariantTableCell},
			AllowedParents:  []Variant{VariantTable},
			Defaults:        map[string]any{},
		},
		{
			Variant:         VariantTableCell,
			Name:            "Table Cell",
			Description:     "One cell of a table row.",
			Category:        CategoryData,
			CanHaveChildren: false,
			AllowedParents:  []Variant{VariantTableRow},
			Defaults:        map[string]any{"content": ""},
		},
		{
			Variant:         VariantAIBlock,
			Name:            "AI Block",
			Description:     "A stored prompt/response pair from an AI provider.",
			Category:        CategoryAI,
			CanHaveChildren: false,
			Defaults:        map[string]any{"prompt": "", "response": "", "model": ""},
			Validate: func(data map[string]any) []FieldError {
				errs := requireContent(data, "prompt")
				errs = append(errs, requireContent(data, "response")...)
				errs = append(errs, rangeField(data, "confidence", 0, 1)...)
				return errs
			},
		},
		{
			Variant:         VariantAIChat,
			Name:            "AI Chat",
			Description:     "A running conversation of AI blocks.",
			Category:        CategoryAI,
			CanHaveChildren: true,
			AllowedChildren: []Variant{VariantAIBlock, VariantAISuggestion},
			Defaults:        map[string]any{"title": "Chat"},
		},
		{
			Variant:         VariantAISuggestion,
			Name:            "AI Suggestion",
			Description:     "A machine-generated suggestion with a confidence score.",
			Category:        CategoryAI,
			CanHaveChildren: false,
			Defaults:        map[string]any{"content": "", "accepted": false},
			Validate: func(data map[string]any) []FieldError {
				return rangeField(data, "confidence", 0, 1)
			},
		},
		{
			Variant:         VariantDivider,
			Name:            "Divider",
			Description:     "A horizontal rule.",
			Category:        CategoryBasic,
			CanHaveChildren: false,
			Defaults:        map[string]any{},
		},
		{
			Variant:         VariantQuote,
			Name:            "Quote",
			Description:     "A block quotation.",
			Category:        CategoryBasic,
			CanHaveChildren: false,
			Defaults:        map[string]any{"content": "", "attribution": ""},
			Validate: func(data map[string]any) []FieldError {
				return requireContent(data, "content")
			},
		},
		{
			Variant:         VariantCode,
			Name:            "Code",
			Description:     "A fenced code block.",
			Category:        CategoryBasic,
			CanHaveChildren: false,
			Defaults:        map[string]any{"content": "", "language": "plaintext"},
			Validate: func(data map[string]any) []FieldError {
				return requireContent(data, "content")
			},
		},
		{
			Variant:         VariantList,
			Name:            "List",
			Description:     "An ordered or unordered list.",
			Category:        CategoryBasic,
			CanHaveChildren: true,
			AllowedChildren: []Variant{VariantListItem},
			Defaults:        map[string]any{"ordered": false},
		},
		{
			Variant:         VariantListItem,
			Name:            "List Item",
			Description:     "One entry of a list.",
			Category:        CategoryBasic,
			CanHaveChildren: true,
			AllowedChildren: []Variant{VariantList},
			AllowedParents:  []Variant{VariantList},
			Defaults:        map[string]any{"content": ""},
			Validate: func(data map[string]any) []FieldError {
				return requireContent(data, "content")
			},
		},
		{
			Variant:         VariantDatabase,
			Name:            "Database",
			Description:     "A structured collection with typed properties.",
			Category:        CategoryData,
			CanHaveChildren: true,
			AllowedChildren: []Variant{VariantDatabaseRow},
			Defaults:        map[string]any{"title": "", "properties": "{}"},
			Validate: func(data map[string]any) []FieldError {
				return jsonField(data, "properties")
			},
		},
		{
			Variant:         VariantDatabaseRow,
			Name:            "Database Row",
			Description:     "One record of a database block.",
			Category:        CategoryData,
			CanHaveChildren: false,
			AllowedParents:  []Variant{VariantDatabase},
			Defaults:        map[string]any{"values": "{}"},
			Validate: func(data map[string]any) []FieldError {
				return jsonField(data, "values")
			},
		},
	}
}
