// Package blockfile reads and writes the block matrix file format.
//
// A file is a header followed by a square matrix of little-endian float32
// values. All integers are little-endian int32 and strings are NUL
// terminated:
//
//	magic       int32    6515048 ("hic")
//	version     int32    currently 1
//	genome      string   e.g. "hg19"
//	chr1        string   row axis label
//	chr2        string   column axis label
//	binSize     int32    genomic bin width in base pairs
//	lowerValue  float32  suggested display lower bound
//	upperValue  float32  suggested display upper bound
//	rows        int32    must equal cols
//	cols        int32
//	blockSize   int32    nominal block edge length
//	payload     rows*cols float32, block-row-major (see Geometry.Range)
package blockfile
