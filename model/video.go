package model

type YoutubeVideoID string

type YoutubeChannelID string

// Video is a single record in the summary store, keyed by VideoID.
// Summary and GeneratedAt stay empty until a generation attempt has
// completed; a completed attempt sets both, success or not.
type Video struct {
	VideoID       string `json:"video_id"`
	Title         string `json:"title"`
	ChannelName   string `json:"channel_name"`
	ChannelURL    string `json:"channel_url"`
	PublishedAt   string `json:"published_at"`
	VideoURL      string `json:"video_url"`
	Summary       string `json:"summary,omitempty"`
	HasTranscript bool   `json:"has_transcript"`
	GeneratedAt   string `json:"generated_at,omitempty"`
}

// Summarized reports whether a summary generation attempt completed for
// this video. Cached failures count too, they are not retried.
func (v *Video) Summarized() bool {
	return v.Summary != ""
}

// ChannelVideos groups the videos of one channel for presentation.
type ChannelVideos struct {
	ChannelName string   `json:"channel_name"`
	ChannelURL  string   `json:"channel_url"`
	Videos      []*Video `json:"videos"`
}
