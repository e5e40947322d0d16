// Package storage converts downloaded images to JPEG and publishes them into
// the output directory.
//
// The storage package handles:
//   - Creating the output directory
//   - Staging raw downloads under unique names
//   - Decoding jpeg, png, gif, webp, bmp and tiff sources
//   - Flattening transparency onto white before JPEG encoding
//   - Publishing by rename from a staging file in the same directory
//
// A final file is either absent or a complete JPEG. Staging files start with
// "tmp_" (downloads) or "." and end in ".part" (conversions); SweepStaging
// removes ones orphaned by an interrupted run.
//
// Usage:
//
//	manager, err := storage.NewManager("images", storage.DefaultQuality, log)
//	if err != nil {
//	    return err
//	}
//
//	src, err := manager.StageDownload("1234", "png", data)
//	if err != nil {
//	    return err
//	}
//	defer os.Remove(src)
//
//	err = manager.ConvertAndPublish(src, manager.FinalPath("quercus_robur", 1))
package storage
