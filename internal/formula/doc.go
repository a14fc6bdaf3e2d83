// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package formula evaluates public counter formulas.
//
// A formula is a postfix expression whose tokens are separated by spaces or
// commas:
//
//	+ - * /                binary arithmetic; x / 0 yields 0
//	(<number>)             constant in the literal format of the result type
//	num_shader_engines     hardware constants (case-insensitive)
//	num_simds
//	su_clocks_prim
//	num_prim_pipes
//	ts_freq
//	max min                binary maximum / minimum
//	max16 max32 max44 max64
//	                       maximum of the top N values
//	sum4 sum8 sum10 sum11 sum12 sum16 sum32 sum44 sum64
//	                       sum of the top N values
//	ifnotzero              pops condition, then true value, then false value
//	<integer>              index into the raw sample vector
//
// For example "0 1 + (100) *" over samples [3, 4] returns 700.
//
// Arithmetic is performed in the Go type matching the declared result type
// of the counter. Raw samples are converted to that type as they are pushed.
package formula
