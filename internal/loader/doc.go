// Package loader discovers and lazily parses module definitions.
//
// A module source is a .json file in the generic module format or a .cue
// file whose value decodes to the same shape. Sources are wrapped in
// Suppliers that defer full parsing until a definition is first needed;
// listing a large module directory only peeks at each source's metadata.
//
// Overrides adjust parsed definitions in memory: each directive addresses
// one value inside one module (or all modules) by a dotted path and
// replaces it. Application never mutates the supplied definition.
package loader
