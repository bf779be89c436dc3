package llmtext

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"golang.org/x/net/html"
)

/*
Model output is Markdown-ish text: bullets written as "•", bold labels such as
"**Analysis:**", sometimes stray HTML tags. Nothing here fails; when a
conversion step errors the input is returned unchanged.
*/

var htmlTag = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*(\s[^<>]*)?/?>`)

// NormalizeMarkup converts HTML fragments in model output to Markdown.
// Text without tags is returned unchanged.
func NormalizeMarkup(text string) string {
	if !htmlTag.MatchString(text) {
		return text
	}

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	md, err := conv.ConvertString(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(md)
}

func renderHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.FlagsNone})
	return markdown.ToHTML([]byte(md), p, renderer)
}

func parseRendered(md string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(string(renderHTML(md))))
}

// ToPlainText renders Markdown to terminal-friendly text: emphasis markers are
// dropped, list items become "• " lines, blocks are separated by blank lines.
func ToPlainText(md string) string {
	doc, err := parseRendered(md)
	if err != nil {
		return md
	}

	var sb strings.Builder
	doc.Find("body").Children().Each(func(_ int, s *goquery.Selection) {
		writeBlock(&sb, s)
	})
	return strings.TrimSpace(sb.String())
}

func writeBlock(sb *strings.Builder, s *goquery.Selection) {
	switch goquery.NodeName(s) {
	case "ul", "ol":
		s.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
			item := strings.TrimSpace(li.Text())
			if !strings.HasPrefix(item, "•") {
				item = "• " + item
			}
			sb.WriteString(item)
			sb.WriteString("\n")
		})
		sb.WriteString("\n")
	case "hr":
		sb.WriteString("\n")
	default:
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
}

// Label is one "**Name:** value" pair found in model output.
type Label struct {
	Name  string
	Value string
}

// Labels extracts bold "Name:" labels and the text that follows each of them,
// up to the next label. A label followed directly by a list takes the list items.
func Labels(md string) []Label {
	doc, err := parseRendered(md)
	if err != nil {
		return nil
	}

	var labels []Label
	doc.Find("strong, b").Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Text())
		if !strings.HasSuffix(name, ":") {
			return
		}
		name = strings.TrimSpace(strings.TrimSuffix(name, ":"))

		value := strings.TrimSpace(textUntilNextLabel(s.Nodes[0]))
		if value == "" {
			if list := s.Parent().NextFiltered("ul, ol"); list.Length() > 0 {
				var items []string
				list.Find("li").Each(func(_ int, li *goquery.Selection) {
					items = append(items, "• "+strings.TrimSpace(li.Text()))
				})
				value = strings.Join(items, "\n")
			}
		}
		labels = append(labels, Label{Name: name, Value: value})
	})
	return labels
}

func textUntilNextLabel(n *html.Node) string {
	var sb strings.Builder
	for sib := n.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type == html.ElementNode && (sib.Data == "strong" || sib.Data == "b") {
			if strings.HasSuffix(strings.TrimSpace(goquery.NewDocumentFromNode(sib).Text()), ":") {
				break
			}
		}
		sb.WriteString(goquery.NewDocumentFromNode(sib).Text())
	}
	return sb.String()
}

// Lookup returns the value of the first label with the given name (case-insensitive).
func Lookup(labels []Label, name string) (string, bool) {
	for _, l := range labels {
		if strings.EqualFold(l.Name, name) {
			return l.Value, true
		}
	}
	return "", false
}
