// Package decoders dispatches a filesystem path to the concrete
// decoder.Decoder implementation for its file extension, wiring the
// resolver's file provider (§6) to the five formats this engine carries.
package decoders

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/the-byte-bender/Playmaker.Audio/internal/decoders/aiffdecoder"
	"github.com/the-byte-bender/Playmaker.Audio/internal/decoders/mp3decoder"
	"github.com/the-byte-bender/Playmaker.Audio/internal/decoders/opusdecoder"
	"github.com/the-byte-bender/Playmaker.Audio/internal/decoders/vorbisdecoder"
	"github.com/the-byte-bender/Playmaker.Audio/internal/decoders/wavdecoder"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/decoder"
)

// ErrUnsupportedExtension is returned by Open for a file extension none
// of the registered decoders handle.
type ErrUnsupportedExtension struct {
	Extension string
}

func (e ErrUnsupportedExtension) Error() string {
	return fmt.Sprintf("decoders: unsupported file extension %q", e.Extension)
}

// Open picks a decoder by path's extension and opens it.
func Open(path string) (decoder.Decoder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return wavdecoder.Open(path)
	case ".aif", ".aiff":
		return aiffdecoder.Open(path)
	case ".mp3":
		return mp3decoder.Open(path)
	case ".ogg":
		return vorbisdecoder.Open(path)
	case ".opus":
		return opusdecoder.Open(path)
	default:
		return nil, ErrUnsupportedExtension{Extension: filepath.Ext(path)}
	}
}
