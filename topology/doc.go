/*
Package topology composes nodes into pipelines, farms and all-to-all graphs.

A topology owns the nodes and nested topologies placed in it; each can be
placed in only one position at a time. Topologies are flattened into a
runtime.Graph when they run: every output node of a stage is connected to
every input node of the next stage and each producer spreads its values by
its routing policy.

Only the outermost topology may be run. Its last stage decides what happens
to the final results: a plain node is a strict sink that may not produce
payloads, while the outputs of a farm or an all-to-all graph go to a
discarding sink.
*/
package topology
