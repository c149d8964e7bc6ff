// Package mediatypes classifies source files as images or videos.
//
// It must stay free of imports from this module.
//
//	switch mediatypes.FromPath(`C:\Users\me\Videos\clip.mp4`) {
//	case mediatypes.FileTypeImage:
//	    // decode with libvips or imaging
//	case mediatypes.FileTypeVideo:
//	    // grab a frame with FFmpeg
//	}
//
// When the extension is missing or misleading, content sniffing in the media
// package returns a container name that FromSniffed maps back to a FileType.
package mediatypes
