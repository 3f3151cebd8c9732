/*
Package main: gopocket -- a pocket computer's line language

gopocket runs the small scripting language of a handheld device: programs are
stored by name in a fixed set of storage slots, and executed one line at a
time with very little working memory.

Every line is a command: a name followed by space separated arguments.

	= A 5
	= B 3
	+ C A B
	PRINT C

Arguments are terms:

	123, -7     integer literals, wrapping at 16 bits
	A .. Z      the variables of the current program invocation
	(1 A "X")   a list literal of terms
	"HELLO"     a text literal; a list of character codes ended by a 0

Builtins usually write their result into their first argument:

	= + - * / % == > ! ~ | & << >>   arithmetic and comparison
	IF X ... END                     run the block when X is nonzero
	WHL X ... END                    repeat the block while X is nonzero
	BRK                              leave the innermost WHL block
	RET                              return from the current program
	RAND STR INT LEN TRUNC GET SET   numbers, text, and lists
	PRINT INPUT                      the display and the line editor

Any other command name calls the stored program of that name: its arguments
bind to A, B, ... in a fresh set of variables, and the caller resumes once
the callee returns or its text runs out.

Values live in a reference counted heap of 8-byte cells; a value is freed as
soon as no variable, literal, or list element refers to it. Lists are chains
of cells, each holding one element reference and a link to the next cell.

The working memory budget is shared: literal bank and scope frames grow up
from the bottom, heap cells are counted down from the heap apex, and running
out of either halts the program with "out of working memory".
*/
package main
