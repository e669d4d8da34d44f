/*
Package edge provides the message passing layer between nodes.

A Message is either a boxed payload or a control token, never both. Edges are
unidirectional FIFO queues: bounded channel edges connect forward stages and
unbounded queue edges close feedback loops. A multi consumer merges the inputs
of a node into a single stream tagged with the input index.
*/
package edge
