package catalog

import "mediasession/pkg/models"

// BuiltinScheme prefixes audio refs that have no file behind them. The
// resolver hands these to the device as synthesized silence of the track's
// duration.
const BuiltinScheme = "builtin:"

// Builtin returns the demo catalog used when no music library is configured.
func Builtin() *Catalog {
	c, err := New([]models.Track{
		{
			ID:         "Jazz_In_Paris",
			Title:      "Jazz in Paris",
			Artist:     "Media Right Productions",
			Album:      "Jazz & Blues",
			Genre:      "Jazz",
			DurationMS: 103000,
			AudioPath:  BuiltinScheme + "jazz_in_paris",
		},
		{
			ID:         "The_Coldest_Shoulder",
			Title:      "The Coldest Shoulder",
			Artist:     "The 126ers",
			Album:      "Youtube Audio Library Rock 2",
			Genre:      "Rock",
			DurationMS: 160000,
			AudioPath:  BuiltinScheme + "the_coldest_shoulder",
		},
		{
			ID:         "test_snippet",
			Title:      "Test Snippet",
			Artist:     "The 126ers",
			Album:      "Youtube Audio Library Rock 2",
			Genre:      "Rock",
			DurationMS: 9000,
			AudioPath:  BuiltinScheme + "test_snippet",
		},
	})
	if err != nil {
		panic(err)
	}
	return c
}
