// Package frontend reads graph definition files and builds contexts from
// them.
//
// Three syntaxes describe the same model (Definition): CUE, HCL and YAML.
// A definition lists named graphs; each graph lists named nodes in order
// and names its outputs. Nodes refer to earlier nodes by name and to other
// graphs by name in call nodes. The main graph is the one named by "main",
// the only graph, or the graph called "main".
//
// Protocol ops are not accepted in definitions; compiled contexts are
// exchanged in their serialized JSON form, which Open also reads.
package frontend
