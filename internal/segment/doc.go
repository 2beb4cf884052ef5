// Package segment finds objects resting on table tops in a point cloud.
//
// For each table-plane box it carves the volume above the table, selects the
// points inside it, groups them with DBSCAN, fits a minimal oriented box to
// each group, drops groups whose box is too small, and writes the surviving
// group ids into a label image aligned with the source depth image.
//
// Key types: Params, Segmenter, Result, ObjectRecord, LabelImage.
// Plug points: DensityClusterer, BoundingVolumeFitter.
//
// Nothing in this package touches files or keeps state between calls.
package segment
