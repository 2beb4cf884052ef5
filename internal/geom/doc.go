// Package geom holds the small amount of rigid-body geometry the segmenter
// needs: 3x3 rotations, 4x4 row-major transforms and oriented boxes with a
// containment test.
//
// All coordinates are metres in the working (base) frame with Z up.
package geom
