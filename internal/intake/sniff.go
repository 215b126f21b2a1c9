package intake

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dhowden/tag"
)

// Media describes what the container sniffer recognised in a staged file.
type Media struct {
	Format   string
	FileType string
	Title    string
	Artist   string
	Album    string
}

// Sniff identifies the container of the file at path and reads embedded
// tags when present. Unknown containers return an empty Media and no error.
func Sniff(path string) (Media, error) {
	f, err := os.Open(path)
	if err != nil {
		return Media{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	format, fileType, err := tag.Identify(f)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return Media{}, nil
	}
	if err != nil {
		return Media{}, fmt.Errorf("identify %s: %w", path, err)
	}
	media := Media{}
	if format != tag.UnknownFormat {
		media.Format = string(format)
	}
	if fileType != tag.UnknownFileType {
		media.FileType = string(fileType)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return media, nil
	}
	meta, err := tag.ReadFrom(f)
	if err != nil {
		return media, nil
	}
	media.Title = meta.Title()
	media.Artist = meta.Artist()
	media.Album = meta.Album()
	return media, nil
}
