package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	ferrors "git.home.luguber.info/inful/appserve/internal/foundation/errors"
)

// shell is one HTML page to generate.
type shell struct {
	layout   string
	template string
	filename string
	minify   bool
}

// ShellAssets is what a generated shell links to.
type ShellAssets struct {
	PublicPath string
	Scripts    []string // bundle names, in load order
	Styles     []string // stylesheet files under PublicPath
	Minify     bool
}

// RenderShell parses a layout template, links each stylesheet in its head and
// appends one script element per bundle to its body, in the given order.
func RenderShell(r io.Reader, assets ShellAssets) ([]byte, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	body := findElement(doc, atom.Body)
	if body == nil {
		return nil, fmt.Errorf("layout has no body element")
	}
	if head := findElement(doc, atom.Head); head != nil {
		for _, name := range assets.Styles {
			head.AppendChild(&html.Node{
				Type:     html.ElementNode,
				DataAtom: atom.Link,
				Data:     "link",
				Attr: []html.Attribute{
					{Key: "rel", Val: "stylesheet"},
					{Key: "href", Val: AssetURL(assets.PublicPath, name)},
				},
			})
		}
	}
	for _, name := range assets.Scripts {
		body.AppendChild(&html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Script,
			Data:     "script",
			Attr:     []html.Attribute{{Key: "src", Val: ScriptSrc(assets.PublicPath, name)}},
		})
	}
	if assets.Minify {
		collapseWhitespace(doc)
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("render layout: %w", err)
	}
	return buf.Bytes(), nil
}

// ScriptSrc is the URL of a bundle under publicPath.
func ScriptSrc(publicPath, bundle string) string {
	return AssetURL(publicPath, bundle+".js")
}

// AssetURL joins publicPath and name with exactly one slash, so a root
// publicPath yields "/name", never a protocol-relative URL.
func AssetURL(publicPath, name string) string {
	return strings.TrimRight(publicPath, "/") + "/" + name
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if e := findElement(c, a); e != nil {
			return e
		}
	}
	return nil
}

// collapseWhitespace drops whitespace-only text nodes and folds runs of
// whitespace to one space. Raw text elements and pre are left untouched.
func collapseWhitespace(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case html.TextNode:
			if strings.TrimSpace(c.Data) == "" {
				n.RemoveChild(c)
			} else {
				c.Data = foldSpaces(c.Data)
			}
		case html.CommentNode:
			n.RemoveChild(c)
		case html.ElementNode:
			switch c.DataAtom {
			case atom.Pre, atom.Textarea, atom.Script, atom.Style:
			default:
				collapseWhitespace(c)
			}
		default:
			collapseWhitespace(c)
		}
		c = next
	}
}

func foldSpaces(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// extractedStyles returns the stylesheet names pattern yields for bundles
// that exist in outputPath. "[name]" in pattern is the bundle name.
func extractedStyles(pattern, outputPath string, bundles []string) []string {
	if pattern == "" {
		return nil
	}
	var out []string
	for _, b := range bundles {
		name := strings.ReplaceAll(pattern, "[name]", b)
		if fi, err := os.Stat(filepath.Join(outputPath, filepath.FromSlash(name))); err == nil && !fi.IsDir() {
			out = append(out, name)
		}
	}
	return out
}

// writeShells renders every shell into outputPath.
func writeShells(shells []shell, outputPath string, assets ShellAssets) error {
	if len(shells) == 0 {
		return nil
	}
	if err := os.MkdirAll(outputPath, 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create output directory").
			Fatal().
			WithContext("path", outputPath).
			Build()
	}
	for _, s := range shells {
		f, err := os.Open(s.template)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryDiscovery, "read layout template").
				Fatal().
				WithContext("layout", s.layout).
				WithContext("path", s.template).
				Build()
		}
		a := assets
		a.Minify = s.minify
		out, err := RenderShell(f, a)
		_ = f.Close()
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "render layout").
				Fatal().
				WithContext("layout", s.layout).
				Build()
		}
		dst := filepath.Join(outputPath, s.filename)
		if err := os.WriteFile(dst, out, 0o600); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write html shell").
				Fatal().
				WithContext("path", dst).
				Build()
		}
	}
	return nil
}
