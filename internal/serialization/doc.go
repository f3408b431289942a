// Package serialization implements the .born checkpoint container.
//
// A .born file holds any combination of a parameter store, an optimizer
// state store, free-form metadata and an architecture descriptor:
//
//	Format Structure:
//	  0x00 [4 bytes: Magic "BORN"]
//	  0x04 [4 bytes: Format version (uint32 LE)]
//	  0x08 [4 bytes: Flags (uint32 LE)]
//	  0x0C [4 bytes: Reserved]
//	  0x10 [8 bytes: Header JSON size (uint64 LE)]
//	  0x18 [8 bytes: Data size (uint64 LE)]
//	  0x20 [32 bytes: SHA-256 of header JSON followed by data]
//	  0x40 [Header: JSON]
//	       [Zero padding to 64-byte alignment]
//	       [Data: parameter tensors, then optimizer buffers, contiguous]
//
// Files are written atomically: WriteFile writes to a temporary file in the
// destination directory and renames it into place, so a failed save leaves
// any previous file untouched.
//
// Example usage:
//
//	bundle := &serialization.Bundle{
//	    Params:   statedict.Snapshot(model),
//	    Metadata: map[string]any{"epoch": 3},
//	}
//	if err := serialization.WriteFile("model.born", bundle); err != nil {
//	    return err
//	}
//
//	loaded, err := serialization.ReadFile("model.born")
//	if errors.Is(err, serialization.ErrCorruptData) {
//	    ...
//	}
package serialization
