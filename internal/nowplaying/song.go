package nowplaying

import (
	"github.com/zmb3/spotify/v2"
)

// Song is what the music widget renders. IsPlaying false means the song
// is the last played one, not the one on right now.
type Song struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	CoverArt   string `json:"coverArt"`
	PreviewURL string `json:"previewUrl,omitempty"`
	SongURL    string `json:"songUrl"`
	IsPlaying  bool   `json:"isPlaying"`
}

// fallbackSong keeps the widget rendering when spotify is not
// configured or not reachable.
var fallbackSong = Song{
	Title:      "WILDFLOWER",
	Artist:     "Billie Eilish",
	CoverArt:   "/images/wildflower.jpg",
	PreviewURL: "/sounds/WILDFLOWER.MP3",
	SongURL:    "https://open.spotify.com/search/wildflower#_=_",
	IsPlaying:  false,
}

func songFromFullTrack(track *spotify.FullTrack, isPlaying bool) Song {
	song := Song{
		Title:      track.Name,
		PreviewURL: track.PreviewURL,
		SongURL:    track.ExternalURLs["spotify"],
		IsPlaying:  isPlaying,
	}
	if len(track.Artists) > 0 {
		song.Artist = track.Artists[0].Name
	}
	if len(track.Album.Images) > 0 {
		song.CoverArt = track.Album.Images[0].URL
	}
	return song
}

func songFromSimpleTrack(track spotify.SimpleTrack) Song {
	song := Song{
		Title:      track.Name,
		PreviewURL: track.PreviewURL,
		SongURL:    track.ExternalURLs["spotify"],
		IsPlaying:  false,
	}
	if len(track.Artists) > 0 {
		song.Artist = track.Artists[0].Name
	}
	if len(track.Album.Images) > 0 {
		song.CoverArt = track.Album.Images[0].URL
	}
	return song
}
