package gallery

import (
	"strconv"
	"strings"
)

const (
	playerWidth  = 300
	playerHeight = 450
)

// MetaTag is one <meta> element. Name and Property are both set when the
// page declares both attributes.
type MetaTag struct {
	Name     string
	Property string
	Content  string
}

type Meta struct {
	Title string
	Tags  []MetaTag
}

func Title(name, username string) string {
	return name + " by @" + username
}

func (s Site) imageMeta(id string) string { return s.ThumbsBase + id + "-size_restricted.gif" }
func (s Site) unsecureImageMeta(id string) string {
	return s.ThumbsBaseUnsecure + id + "-size_restricted.gif"
}
func (s Site) videoMeta(id string) string         { return s.ThumbsBase + id + "-mobile.mp4" }
func (s Site) unsecureVideoMeta(id string) string { return s.ThumbsBaseUnsecure + id + "-mobile.mp4" }

// PlayerURL is the twitter player card embed for a gif.
func (s Site) PlayerURL(id string) string {
	return strings.TrimRight(s.Website, "/") + "/player?id=" + id
}

// Meta builds the head of a detail page: description, keywords, the twitter
// player card and the open graph video tags.
func (c *Composer) Meta(d *Detail) Meta {
	site := c.site
	title := Title(d.Name, d.Username)
	prop := func(p, content string) MetaTag { return MetaTag{Property: p, Content: content} }
	name := func(n, content string) MetaTag { return MetaTag{Name: n, Content: content} }

	return Meta{
		Title: title,
		Tags: []MetaTag{
			{Name: "description", Property: "description", Content: d.ShortDescription},
			{Name: "keywords", Property: "keywords", Content: strings.Join(d.Category, ", ")},
			name("author", d.Username),
			prop("twitter:card", "player"),
			prop("twitter:site", site.TwitterSite),
			prop("twitter:url", strings.TrimRight(site.Website, "/")+d.OriginalURL),
			name("twitter:player", site.PlayerURL(d.ID)),
			name("twitter:player:width", strconv.Itoa(playerWidth)),
			name("twitter:player:height", strconv.Itoa(playerHeight)),
			prop("twitter:title", title),
			prop("twitter:description", d.ShortDescription),
			prop("twitter:image", site.imageMeta(d.ID)),
			prop("og:type", "video"),
			prop("og:type", "video.other"),
			prop("og:title", title),
			prop("og:url", site.imageMeta(d.ID)),
			prop("og:description", d.ShortDescription),
			prop("og:image", site.unsecureImageMeta(d.ID)),
			prop("og:image:type", "image/gif"),
			prop("og:image:width", strconv.Itoa(d.Width)),
			prop("og:image:height", strconv.Itoa(d.Height)),
			prop("og:image:secure_url", site.imageMeta(d.ID)),
			prop("og:video", site.unsecureVideoMeta(d.ID)),
			prop("og:video:secure_url", site.videoMeta(d.ID)),
			prop("og:video:type", "video/mp4"),
		},
	}
}
