// Package block implements the schema-driven block content tree: a registry
// of block variants with structural constraints and validators, and a CRUD
// engine that keeps the tree a forest across every mutation.
package block

// Variant identifies the shape and behavior of a block.
type Variant string

const (
	VariantText           Variant = "text"
	VariantHeading        Variant = "heading"
	VariantTodo           Variant = "todo"
	VariantImage          Variant = "image"
	VariantPage           Variant = "page"
	VariantRow            Variant = "row"
	VariantColumn         Variant = "column"
	VariantKanbanBoard    Variant = "kanban_board"
	VariantKanbanColumn   Variant = "kanban_column"
	VariantKanbanCard     Variant = "kanban_card"
	VariantKanbanSwimlane Variant = "kanban_swimlane"
	VariantTable          Variant = "table"
	VariantTableRow       Variant = "table_row"
	VariantTableCell      Variant = "table_cell"
	VariantAIBlock        Variant = "ai_block"
	VariantAIChat         Variant = "ai_chat"
	VariantAISuggestion   Variant = "ai_suggestion"
	VariantDivider        Variant = "divider"
	VariantQuote          Variant = "quote"
	VariantCode           Variant = "code"
	VariantList           Variant = "list"
	VariantListItem       Variant = "list_item"
	VariantDatabase       Variant = "database"
	VariantDatabaseRow    Variant = "database_row"
)

// Category groups variants for listing in pickers and admin UIs.
type Category string

const (
	CategoryBasic  Category = "basic"
	CategoryLayout Category = "layout"
	CategoryKanban Category = "kanban"
	CategoryData   Category = "data"
	CategoryAI     Category = "ai"
)
