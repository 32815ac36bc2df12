package bundle

import (
	"maps"
	"regexp"
)

// RuleKind names the transform applied to files a rule matches.
type RuleKind string

const (
	KindLint       RuleKind = "lint"
	KindFramework  RuleKind = "framework"
	KindAsset      RuleKind = "asset"
	KindTypeScript RuleKind = "typescript"
	KindScript     RuleKind = "script"
	KindStyle      RuleKind = "style"
)

// Enforce places a rule before the normal rule pass.
type Enforce string

const (
	EnforceNormal Enforce = ""
	EnforcePre    Enforce = "pre"
)

// Rule matches module paths by extension and names a transform.
type Rule struct {
	Name    string
	Test    *regexp.Regexp
	Exclude *regexp.Regexp
	Kind    RuleKind
	Enforce Enforce
	Options map[string]any
}

// Matches reports whether path is selected by the rule.
func (r Rule) Matches(path string) bool {
	if r.Test == nil || !r.Test.MatchString(path) {
		return false
	}
	return r.Exclude == nil || !r.Exclude.MatchString(path)
}

func (r Rule) clone() Rule {
	r.Options = maps.Clone(r.Options)
	return r
}

var nodeModules = regexp.MustCompile(`node_modules`)

// AssetExtensions are copied to the output directory as files.
var AssetExtensions = []string{".png", ".jpg", ".gif", ".svg", ".otf", ".ttf"}

// baseRules returns the fixed rule order: lint pass, framework files, binary
// assets, typescript, scripts, then the fallback style rule.
func baseRules(publicPath string) []Rule {
	return []Rule{
		{
			Name:    "lint",
			Test:    regexp.MustCompile(`\.(vue|js)$`),
			Exclude: nodeModules,
			Kind:    KindLint,
			Enforce: EnforcePre,
		},
		{
			Name:    "framework",
			Test:    regexp.MustCompile(`\.vue$`),
			Exclude: nodeModules,
			Kind:    KindFramework,
			Options: map[string]any{"preserveWhitespace": true},
		},
		{
			Name:    "asset",
			Test:    regexp.MustCompile(`\.(png|jpg|gif|svg|otf|ttf)$`),
			Kind:    KindAsset,
			Options: map[string]any{"name": "[name].[ext]", "publicPath": publicPath},
		},
		{
			Name:    "typescript",
			Test:    regexp.MustCompile(`\.ts$`),
			Exclude: nodeModules,
			Kind:    KindTypeScript,
		},
		{
			Name:    "script",
			Test:    regexp.MustCompile(`\.js$`),
			Exclude: nodeModules,
			Kind:    KindScript,
		},
		{
			Name: "style",
			Test: regexp.MustCompile(`\.css$`),
			Kind: KindStyle,
		},
	}
}
