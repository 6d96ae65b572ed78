package calls

// Tree-sitter pattern queries per language. Capture names are the
// contract with the extractor: callee.name, call, constructor,
// import.name, import.default, import.namespace.

const typescriptQuery = `
(call_expression
  function: (identifier) @callee.name) @call

(call_expression
  function: (member_expression
    property: (property_identifier) @callee.name)) @call

(new_expression
  constructor: (identifier) @callee.name) @constructor

(import_specifier
  name: (identifier) @import.name)

(import_clause
  (identifier) @import.default)

(namespace_import
  (identifier) @import.namespace)
`

const pythonQuery = `
(call
  function: (identifier) @callee.name) @call

(call
  function: (attribute
    attribute: (identifier) @callee.name)) @call

(import_statement
  name: (dotted_name
    (identifier) @import.name))

(import_from_statement
  name: (dotted_name
    (identifier) @import.name))
`

const rustQuery = `
(call_expression
  function: (identifier) @callee.name) @call

(call_expression
  function: (field_expression
    field: (field_identifier) @callee.name)) @call

(call_expression
  function: (scoped_identifier
    name: (identifier) @callee.name)) @call

(use_declaration
  argument: (identifier) @import.name)

(use_declaration
  argument: (scoped_identifier
    name: (identifier) @import.name))
`

// The Go grammar exposes import paths as quoted string literals rather
// than identifiers, so the Go query covers calls only.
const goQuery = `
(call_expression
  function: (identifier) @callee.name) @call

(call_expression
  function: (selector_expression
    field: (field_identifier) @callee.name)) @call
`
