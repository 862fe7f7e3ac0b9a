// Package probe collects per-file facts for the index builder.
//
// StatProber is the default and costs one stat call per file. MetadataProber
// is enabled with PROBE_METADATA and additionally records duration and
// resolution using ffprobe for video and audio, and image.DecodeConfig for
// stills (gif, jpeg, png, bmp, tiff, webp).
package probe
