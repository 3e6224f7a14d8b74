/*
Package sparse implements the lexical retrieval stage: an in-memory inverted
index scored with BM25.

The index is safe for one writer and many concurrent readers. It also serves
as the chunk catalog: stored chunks are returned whole by Get, which is how
candidates surfaced by other retrieval stages recover their text and
metadata.
*/
package sparse
