// Package blueprint converts YAML blueprints into the payload accepted by the
// blueprint API.
//
// A blueprint moves through three representations:
//
//   - Document: the parsed YAML, kept as an ordered tree so key order survives
//   - canonical JSON: the tree serialized under a pinned Format
//   - Wrapper: the JSON, base64-encoded under the single key "blueprint"
//
// Each step is lossless. Decoding the wrapper field yields the canonical JSON
// byte for byte.
//
// # Canonical JSON
//
// Format pins key order, separators, and escaping so the same document always
// produces the same bytes:
//
//	doc, err := blueprint.Parse(data)
//	if err != nil {
//	    return err
//	}
//	out, err := doc.JSON(blueprint.DefaultFormat())
//
// The default format writes keys in document order with ", " and ": "
// separators and escapes non-ASCII text as \uXXXX.
//
// # YAML semantics
//
// Aliases and merge keys (<<) are resolved. Duplicate keys keep their first
// position and their last value. Scalar keys that are not strings are
// stringified. Collection keys, custom tags, and multi-document streams are
// rejected with ErrSyntax. Values that JSON cannot carry (NaN, infinities,
// !!binary, recursive aliases) fail encoding with ErrUnsupported.
package blueprint
