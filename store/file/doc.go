// Package file keeps launcher state as JSON documents under the data dir.
//
// Account writes take an in-process mutex and an exclusive OS file lock on a
// sibling ".lock" file, so two launcher processes never interleave a
// read-modify-write of accounts.json.
package file
