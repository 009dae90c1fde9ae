package mcpserver

// PlaceholderSyntax describes how template authors mark fields inside DOCX
// and ODT documents. LLM consumers should read it before drafting or
// reviewing a template.
const PlaceholderSyntax = `# Resolate Placeholder Syntax

Placeholders are written in the visible text of a DOCX or ODT template
(body, headers, footers, footnotes and endnotes). Word processors may split
a placeholder across formatting runs; the extractor joins them back.

## Shape

` + "```" + `
[name;key=value;key='quoted; value';key="another value";flag]
` + "```" + `

1. The first segment is the field name. Letters, digits, spaces, ` + "`_`" + ` and ` + "`-`" + `
   are allowed. Anything else makes the placeholder invalid and it is skipped.
2. Further segments are ` + "`key=value`" + ` pairs separated by ` + "`;`" + `. Keys are
   case-insensitive. Values may be single or double quoted to contain ` + "`;`" + `
   or ` + "`]`" + `. HTML entities in values are decoded.
3. A segment without ` + "`=`" + `, or with an empty value, is a flag set to true.

## Field parameters

| Key          | Meaning                                          |
|--------------|--------------------------------------------------|
| type         | Field type (see below)                           |
| data-type    | Used when ` + "`type`" + ` is absent                       |
| title        | Label shown to editors                           |
| placeholder  | Hint text for empty inputs                       |
| description  | Longer help text                                 |
| pattern      | Validation regular expression                    |
| patternmsg   | Message shown when ` + "`pattern`" + ` fails               |
| minvalue     | Lower bound for numbers and dates                |
| maxvalue     | Upper bound for numbers and dates                |
| length       | Maximum length of the value                      |

## Types

Known types: text, number, date, email, url, textarea, html, boolean.

Aliases: rich, tinymce, editor map to html; text-area and text_area map to
textarea; numeric, int, integer, float, decimal map to number; bool and
checkbox map to boolean.

Without a usable type, names containing html, rich, contenido, body or
cuerpo become html. Everything else is textarea.

## Repeaters

` + "```" + `
[items;block=begin;title='Line items']
[description]
[amount;type=number]
[items;block=end]
` + "```" + `

Fields between ` + "`block=begin`" + ` and the matching ` + "`block=end`" + ` belong to the
repeater. Block names match case-insensitively and blocks may nest. An
unmatched end is ignored; an unclosed begin absorbs every following field.
`
