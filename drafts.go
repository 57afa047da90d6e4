package pubstatic

import "strings"

const draftSuffix = " (draft)"

// FilterDraft is the drafts preprocessor. It never modifies data; the
// returned Metadata is a copy with the title annotated when the item is a
// draft. Drafts are excluded only in production builds.
//
// An already annotated title is left alone, so running the filter twice on
// the same item yields the same title.
func FilterDraft(data Metadata, mode RunMode) (Metadata, Decision) {
	out := data.Clone()
	if !data.Bool("draft") {
		return out, Keep
	}
	title := data.String("title")
	if !strings.HasSuffix(" "+title, draftSuffix) {
		out["title"] = strings.TrimLeft(title+draftSuffix, " ")
	}
	if mode.IsProduction() {
		return out, Exclude
	}
	return out, Keep
}

func draftsPreprocessor(ctx PreprocessContext, data Metadata, _ []byte) (Metadata, Decision) {
	return FilterDraft(data, ctx.Mode)
}
