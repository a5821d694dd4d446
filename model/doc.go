// Package model defines the provider-agnostic abstractions for interacting
// with language models.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition)
//   - Expose provider built-ins (grounded search) as declarative flags
//   - Facilitate lightweight scripting for tests (ScriptedModel, Func)
//
// Providers (gemini, openai, anthropic, bedrock) implement Model in
// sub-packages so agents and flows stay decoupled from vendor SDKs.
package model
