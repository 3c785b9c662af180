package lastfm

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/edumarques81/chartfy-backend/internal/domain/collage"
)

// flexText decodes a value that Last.fm sends either as a plain string or as an
// object carrying "#text", "name" or "title".
type flexText string

func (f *flexText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexText(s)
		return nil
	}

	var obj struct {
		Text  string `json:"#text"`
		Name  string `json:"name"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		// numbers, arrays: treat as absent
		*f = ""
		return nil
	}
	switch {
	case obj.Text != "":
		*f = flexText(obj.Text)
	case obj.Name != "":
		*f = flexText(obj.Name)
	default:
		*f = flexText(obj.Title)
	}
	return nil
}

// flexCount keeps the raw play count, whether sent as a string or a number.
type flexCount string

func (f *flexCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexCount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexCount(n.String())
		return nil
	}
	*f = ""
	return nil
}

// image is one entry of a Last.fm image array.
type image struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

type images []image

// UnmarshalJSON tolerates a missing, null or malformed image field.
func (im *images) UnmarshalJSON(data []byte) error {
	var list []image
	if err := json.Unmarshal(data, &list); err != nil {
		*im = nil
		return nil
	}
	*im = list
	return nil
}

func (im images) variants() collage.ImageVariantSet {
	if len(im) == 0 {
		return nil
	}
	out := make(collage.ImageVariantSet, 0, len(im))
	for _, i := range im {
		out = append(out, collage.ImageVariant{Size: collage.ParseSizeTag(i.Size), URL: i.URL})
	}
	return out
}

// rawItem covers album, track and artist entries of the user.gettop* methods.
type rawItem struct {
	Name      string    `json:"name"`
	Artist    flexText  `json:"artist"`
	Album     flexText  `json:"album"`
	Image     images    `json:"image"`
	PlayCount flexCount `json:"playcount"`
}

func (r rawItem) ranked() collage.RankedItem {
	return collage.RankedItem{
		Name:      r.Name,
		Artist:    strings.TrimSpace(string(r.Artist)),
		Album:     strings.TrimSpace(string(r.Album)),
		Images:    r.Image.variants(),
		PlayCount: string(r.PlayCount),
	}
}

// itemList decodes an array, or a single object when the user has one item.
type itemList []rawItem

func (l *itemList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var one rawItem
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*l = itemList{one}
		return nil
	}
	var many []rawItem
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	if many == nil {
		many = []rawItem{}
	}
	*l = many
	return nil
}

type topAlbumsResponse struct {
	TopAlbums *struct {
		Album itemList `json:"album"`
	} `json:"topalbums"`
}

type topTracksResponse struct {
	TopTracks *struct {
		Track itemList `json:"track"`
	} `json:"toptracks"`
}

type topArtistsResponse struct {
	TopArtists *struct {
		Artist itemList `json:"artist"`
	} `json:"topartists"`
}

type albumInfoResponse struct {
	Album *struct {
		Image images `json:"image"`
	} `json:"album"`
}

type trackInfoResponse struct {
	Track *struct {
		Album *struct {
			Image images `json:"image"`
		} `json:"album"`
	} `json:"track"`
}

type artistInfoResponse struct {
	Artist *struct {
		Image images `json:"image"`
	} `json:"artist"`
}
