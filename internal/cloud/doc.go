// Package cloud stores point clouds as a flat arena of points plus, for
// clouds built from a depth image, the height×width layout that maps each
// point 1:1 to a pixel. Invalid returns are kept as NaN points in structured
// clouds so indices stay aligned with the image.
//
// Subsets are index arrays into a parent cloud; no point data is copied.
package cloud
