package preview

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".bmp": {},
}

var youtubeID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// IsImageURL сообщает, указывает ли ссылка прямо на картинку (по расширению пути)
func IsImageURL(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	_, ok := imageExtensions[strings.ToLower(path.Ext(u.Path))]
	return ok
}

// Domain возвращает хост ссылки без префикса www.
func Domain(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// YouTubeThumbnail выводит адрес превью ролика YouTube из ссылки на него
func YouTubeThumbnail(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}

	var id string
	switch host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."); host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/embed/"), strings.HasPrefix(u.Path, "/shorts/"), strings.HasPrefix(u.Path, "/v/"):
			parts := strings.Split(strings.Trim(u.Path, "/"), "/")
			if len(parts) >= 2 {
				id = parts[1]
			}
		}
	}

	if !youtubeID.MatchString(id) {
		return "", false
	}
	return "https://i.ytimg.com/vi/" + id + "/hqdefault.jpg", true
}
