/*
Package node adapts user callables to the runtime's node interface.

A node has an Arity (single or multi input, single or multi output) and a set
of Callables. The runtime binds a node to its edges for one run and then
drives it: Init, a sequence of Step and EOSNotify calls, and finally
Terminate. The node turns callable results into edge messages, boxing
payloads and passing control tokens through untouched.

Lifecycle:

	Created --Init--> Ready --TERMINATE_OUTPUT--> Draining
	Ready|Draining --EOS--> Terminated --Init--> Ready
	Ready|Draining --EOS_WEAK--> Suspended --Init (no init callable)--> Ready
	Ready|Draining --EOS_NORESTART--> Retired
	Suspended --Close--> Terminated
*/
package node
