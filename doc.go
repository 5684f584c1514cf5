// Package bmg reads, edits and rebuilds BMG message containers.
//
// A BMG file starts with an 8-byte format tag ("MESGbmg1"), the total file
// size, a section count and an encoding id, followed by tagged sections:
//   - INF1, a table of fixed-size records whose last four bytes point into
//     the string pool
//   - DAT1, the string pool of null-terminated 16-bit strings
//   - MID1 (optional), a table that holds either pointers into the pool or
//     opaque ids, decided from the data itself
//
// Strings are exposed as text in which control codes appear as bracket
// tokens such as [1A:0001] or [05]; see [Codec].
//
// # Basic Usage
//
//	c, err := bmg.Parse(data)
//	if err != nil {
//		return err
//	}
//	if err := c.SetText(bmg.EntryRef(0), "Hello[1A:0001] World", false); err != nil {
//		return err
//	}
//	res, err := c.Build()
//	if err != nil {
//		return err
//	}
//	os.WriteFile("out.bmg", res.Data, 0o644)
//
// Building a container without edits reproduces the input byte for byte
// when its string pool is 4-byte aligned; an unaligned pool gains padding.
// Strings shared by several records must be edited together (see
// [Container.SetSharedText]); a build never guesses which text wins.
//
// # Patches
//
// Edits can be carried separately from the container in a BMGP patch file:
// a 32-byte header bound to the source container by its xxhash64
// fingerprint, and one gob-encoded edits section that may be compressed
// with ZIP, Zstandard, LZ4, Brotli or S2. See [CreatePatch], [EncodePatch],
// [DecodePatch] and [Container.ApplyPatch].
//
// # Diagnostics
//
// Files in the wild carry dangling offsets, truncated tables and padding.
// Such conditions do not fail a parse or build; they are returned from
// [Container.Diagnostics] and [BuildResult] and logged through glog.
package bmg
