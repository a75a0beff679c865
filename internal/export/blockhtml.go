package export

import (
	"fmt"
	"html"
	"strings"

	"lattice/api/internal/block"
)

// Resolver looks up a block by id. Missing blocks resolve to nil and are
// skipped during rendering.
type Resolver func(id string) *block.Block

// BlockToHTML renders a block and its descendants to HTML.
func BlockToHTML(root *block.Block, resolve Resolver) string {
	if root == nil {
		return ""
	}
	var sb strings.Builder
	renderBlock(&sb, root, resolve, 0)
	return sb.String()
}

func renderBlock(sb *strings.Builder, b *block.Block, resolve Resolver, depth int) {
	// Cycles cannot occur in a well-formed forest; the depth guard keeps a
	// corrupted snapshot from hanging an export.
	if b == nil || depth > 100 {
		return
	}

	switch b.Variant {
	case block.VariantPage:
		title := dataString(b, "title")
		tag := "h1"
		if depth > 0 {
			tag = "h2"
		}
		fmt.Fprintf(sb, "<%s>%s</%s>\n", tag, html.EscapeString(title), tag)
		renderChildren(sb, b, resolve, depth)
	case block.VariantHeading:
		level := dataInt(b, "level", 1)
		if level < 1 {
			level = 1
		}
		if level > 6 {
			level = 6
		}
		fmt.Fprintf(sb, "<h%d>%s</h%d>\n", level, html.EscapeString(dataString(b, "content")), level)
	case block.VariantText:
		fmt.Fprintf(sb, "<p>%s</p>\n", html.EscapeString(dataString(b, "content")))
	case block.VariantTodo:
		checked := ""
		if completed, ok := b.Data["completed"].(bool); ok && completed {
			checked = " checked"
		}
		fmt.Fprintf(sb, "<div class=\"todo\"><input type=\"checkbox\" disabled%s> %s</div>\n", checked, html.EscapeString(dataString(b, "content")))
		renderChildren(sb, b, resolve, depth)
	case block.VariantQuote:
		fmt.Fprintf(sb, "<blockquote>%s</blockquote>\n", html.EscapeString(dataString(b, "content")))
	case block.VariantCode:
		lang := dataString(b, "language")
		fmt.Fprintf(sb, "<pre><code class=\"language-%s\">%s</code></pre>\n", html.EscapeString(lang), html.EscapeString(dataString(b, "content")))
	case block.VariantDivider:
		sb.WriteString("<hr>\n")
	case block.VariantImage:
		fmt.Fprintf(sb, "<figure><img src=\"%s\" alt=\"%s\">", html.EscapeString(dataString(b, "url")), html.EscapeString(dataString(b, "alt")))
		if alt := dataString(b, "alt"); alt != "" {
			fmt.Fprintf(sb, "<figcaption>%s</figcaption>", html.EscapeString(alt))
		}
		sb.WriteString("</figure>\n")
	case block.VariantRow:
		sb.WriteString("<div class=\"row\">\n")
		renderChildren(sb, b, resolve, depth)
		sb.WriteString("</div>\n")
	case block.VariantColumn:
		sb.WriteString("<div class=\"column\">\n")
		renderChildren(sb, b, resolve, depth)
		sb.WriteString("</div>\n")
	case block.VariantList:
		tag := "ul"
		if ordered, ok := b.Data["ordered"].(bool); ok && ordered {
			tag = "ol"
		}
		fmt.Fprintf(sb, "<%s>\n", tag)
		renderChildren(sb, b, resolve, depth)
		fmt.Fprintf(sb, "</%s>\n", tag)
	case block.VariantListItem:
		fmt.Fprintf(sb, "<li>%s\n", html.EscapeString(dataString(b, "content")))
		renderChildren(sb, b, resolve, depth)
		sb.WriteString("</li>\n")
	case block.VariantTable, block.VariantDatabase:
		if title := dataString(b, "title"); title != "" {
			fmt.Fprintf(sb, "<h3>%s</h3>\n", html.EscapeString(title))
		}
		sb.WriteString("<table>\n")
		renderChildren(sb, b, resolve, depth)
		sb.WriteString("</table>\n")
	case block.VariantTableRow:
		sb.WriteString("<tr>\n")
		renderChildren(sb, b, resolve, depth)
		sb.WriteString("</tr>\n")
	case block.VariantDatabaseRow:
		fmt.Fprintf(sb, "<tr><td>%s</td></tr>\n", html.EscapeString(dataString(b, "values")))
	case block.VariantTableCell:
		fmt.Fprintf(sb, "<td>%s</td>\n", html.EscapeString(dataString(b, "content")))
	case block.VariantKanbanBoard:
		fmt.Fprintf(sb, "<h2>%s</h2>\n<div class=\"board\">\n", html.EscapeString(dataString(b, "title")))
		renderChildren(sb, b, resolve, depth)
		sb.WriteString("</div>\n")
	case block.VariantKanbanColumn, block.VariantKanbanSwimlane:
		fmt.Fprintf(sb, "<div class=\"lane\"><h3>%s</h3>\n", html.EscapeString(dataString(b, "title")))
		renderChildren(sb, b, resolve, depth)
		sb.WriteString("</div>\n")
	case block.VariantKanbanCard:
		fmt.Fprintf(sb, "<div class=\"card\"><strong>%s</strong>\n", html.EscapeString(dataString(b, "title")))
		renderChildren(sb, b, resolve, depth)
		sb.WriteString("</div>\n")
	case block.VariantAIChat:
		fmt.Fprintf(sb, "<h3>%s</h3>\n", html.EscapeString(dataString(b, "title")))
		renderChildren(sb, b, resolve, depth)
	case block.VariantAIBlock:
		if prompt := dataString(b, "prompt"); prompt != "" {
			fmt.Fprintf(sb, "<p><em>%s</em></p>\n", html.EscapeString(prompt))
		}
		fmt.Fprintf(sb, "<p>%s</p>\n", html.EscapeString(dataString(b, "response")))
	case block.VariantAISuggestion:
		fmt.Fprintf(sb, "<p class=\"suggestion\">%s</p>\n", html.EscapeString(dataString(b, "content")))
	default:
		if content := dataString(b, "content"); content != "" {
			fmt.Fprintf(sb, "<p>%s</p>\n", html.EscapeString(content))
		}
		renderChildren(sb, b, resolve, depth)
	}
}

func renderChildren(sb *strings.Builder, b *block.Block, resolve Resolver, depth int) {
	for _, childID := range b.Children {
		renderBlock(sb, resolve(childID), resolve, depth+1)
	}
}

func dataString(b *block.Block, key string) string {
	value, _ := b.Data[key].(string)
	return value
}

func dataInt(b *block.Block, key string, fallback int) int {
	switch v := b.Data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return fallback
	}
}
