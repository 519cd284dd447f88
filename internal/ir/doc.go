// Package ir provides the value, key and entity types shared by every layer
// of the query pipeline.
//
// This package contains type definitions and their ordering rules only. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Value is a sealed interface; only the types in this package implement it
//   - Values of different types are totally ordered by type rank:
//     Null < Int < Bool < String < Float < Key
//   - EncodeIndex is order-preserving: bytes.Compare on two encodings agrees
//     with Compare on the values they encode
//   - Keys compare by namespace, then by ancestor path element by element
package ir
