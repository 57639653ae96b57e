// Package wikigraph turns a wikipedia multistream dump into a link graph.
//
// The dumps are available from the wikimedia group here:
//    http://dumps.wikimedia.org/
//
// You want the pages-articles-multistream dump along with its index.
// Each line of the index names the byte offset of the bzip2 stream
// holding an article, so the dump can be cut into independent blocks
// and decompressed piecemeal.
//
// A graph is built in two passes over those blocks.  The first pass
// collects every article (namespace 0) into a NodeIndex, which is then
// sealed.  The second pass decompresses the blocks again and resolves
// each article's wikilinks against the sealed index.  Links to titles
// that aren't articles are dropped unless asked otherwise.
//
// See tools/wikigraph for the command line program and export/ for
// the places a graph can be sent.
package wikigraph
