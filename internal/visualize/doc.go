// Package visualize renders segmentation output for inspection: a coloured
// label image (optionally blended over the RGB frame), a raw int16 label
// dump, and a top-down plot of table and object footprints.
package visualize
