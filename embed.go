package pubstatic

import "embed"

// EmbeddedAssets contains files shipped with the generator:
// the default feed stylesheet.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS

const defaultFeedStylesheet = "pretty-atom-feed.xsl"

// writeDefaultStylesheet writes the bundled feed stylesheet to rel unless
// the site already provides one there.
func writeDefaultStylesheet(b *BuildContext, rel string) error {
	data, err := EmbeddedAssets.ReadFile("embedded/" + defaultFeedStylesheet)
	if err != nil {
		return err
	}
	_, err = b.WriteOnce(rel, data)
	return err
}
