// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package stmacro

// PreludeVariable is the global variable that, when set, replaces the
// prelude passed to WithPrelude. Persisted stores keep it across runs.
const PreludeVariable = "__prelude__"
