// Package sas7bdat decodes SAS7BDAT dataset files into a dataset.Table.
//
// A SAS7BDAT file is a fixed-size header followed by equally sized pages.
// Metadata lives in typed "subheaders" on meta and mix pages; rows live on
// data pages, after the subheader pointers of mix pages, or (for compressed
// datasets) as individual subheaders on meta pages. Both 32-bit and 64-bit
// layouts and both byte orders are handled, as are the two row compression
// schemes SAS writes (RLE, "SASYZCRL", and RDC, "SASYZCR2").
//
// Decoding is pure: Decode only reads the supplied buffer. Every failure is an
// *apperr.E of kind apperr.Decode.
package sas7bdat
