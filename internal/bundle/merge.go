package bundle

import "maps"

// Merge returns a new BuildConfig with overlay structurally merged onto base.
// Sequences (rules, plugins, extensions) are concatenated, the alias mapping
// is merged with overlay keys winning and scalar fields are replaced when set
// in overlay. Neither argument is modified.
func Merge(base, overlay *BuildConfig) *BuildConfig {
	out := base.Clone()
	if out == nil {
		out = &BuildConfig{}
	}
	if overlay == nil {
		return out
	}
	if !overlay.Entry.IsZero() {
		out.Entry = overlay.Entry.Clone()
	}
	if overlay.OutputPath != "" {
		out.OutputPath = overlay.OutputPath
	}
	if overlay.PublicPath != "" {
		out.PublicPath = overlay.PublicPath
	}
	if overlay.Devtool != "" {
		out.Devtool = overlay.Devtool
	}
	for _, r := range overlay.Rules {
		out.Rules = append(out.Rules, r.clone())
	}
	for _, p := range overlay.Plugins {
		out.Plugins = append(out.Plugins, clonePlugin(p))
	}
	out.Resolve.Extensions = append(out.Resolve.Extensions, overlay.Resolve.Extensions...)
	if len(overlay.Resolve.Aliases) > 0 {
		if out.Resolve.Aliases == nil {
			out.Resolve.Aliases = make(map[string]string, len(overlay.Resolve.Aliases))
		}
		maps.Copy(out.Resolve.Aliases, overlay.Resolve.Aliases)
	}
	return out
}
