package gitpress

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/gitpress/content"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// parsePostDate accepts the ISO-8601 dates written into post frontmatter
// as well as bare calendar dates from hand-edited files.
func parsePostDate(date string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (a *App) renderRSS(c echo.Context, user string, posts []content.Post) error {
	userURL := UserURL(a.Config.URL, user)
	items := make([]rssItem, 0, len(posts))
	for _, p := range posts {
		pubDate := ""
		if t, ok := parsePostDate(p.Date); ok {
			pubDate = t.Format(time.RFC1123Z)
		}
		postURL := PostURL(a.Config.URL, user, p.ID)
		items = append(items, rssItem{
			Title:       p.Title,
			Link:        postURL,
			Description: Summary(p, 300),
			PubDate:     pubDate,
			GUID:        postURL,
		})
	}
	description := a.Config.Description
	if description == "" {
		description = "Posts by " + user
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       user + " · " + a.Config.Name,
			Link:        userURL,
			Description: description,
			Items:       items,
		},
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(feed)
}
