package config

import "github.com/trevorWieland/rentl-sub001/internal/model"

// Built-in prompts used when the project file does not define an agent
// for a phase. Kept deliberately short; serious projects override them.

func defaultSystemPrompt(phase model.Phase) string {
	switch phase {
	case model.PhaseContext:
		return "You annotate visual-novel dialogue. For each line, describe tone, register, and any reference a translator needs. Respond with JSON only."
	case model.PhasePretranslation:
		return "You prepare dialogue for translation. Propose candidate translations for recurring terms and names, consistent with the provided memory entries. Respond with JSON only."
	case model.PhaseTranslate:
		return "You translate visual-novel dialogue into the requested target language, preserving speaker voice and honorifics policy. Respond with JSON only."
	case model.PhaseQA:
		return "You review translated dialogue for mistranslations, dropped content, and inconsistent terminology. Respond with JSON only."
	case model.PhaseEdit:
		return "You polish translated dialogue for fluency without changing meaning. Apply the QA notes you are given. Respond with JSON only."
	default:
		return "You process visual-novel dialogue. Respond with JSON only."
	}
}

func defaultUserPromptTemplate(phase model.Phase) string {
	const header = "Project {{.Project}}: {{.SourceLanguage}} to {{.TargetLanguage}}.\nScene {{.Scene}}.\n"
	switch phase {
	case model.PhaseContext:
		return header + "Annotate each line:\n{{range .Lines}}{{.ID}} [{{.Speaker}}] {{.Source}}\n{{end}}"
	case model.PhasePretranslation:
		return header + "Propose candidate translations:\n{{range .Lines}}{{.ID}} [{{.Speaker}}] {{.Source}}\n{{end}}"
	case model.PhaseTranslate:
		return header + "Translate each line:\n{{range .Lines}}{{.ID}} [{{.Speaker}}] {{.Source}}{{if .ContextNote}} ({{.ContextNote}}){{end}}\n{{end}}"
	case model.PhaseQA:
		return header + "Review each translation:\n{{range .Lines}}{{.ID}} [{{.Speaker}}] {{.Source}} => {{.Translation}}\n{{end}}"
	case model.PhaseEdit:
		return header + "Edit each translation:\n{{range .Lines}}{{.ID}} [{{.Speaker}}] {{.Translation}}{{if .QANote}} (qa: {{.QANote}}){{end}}\n{{end}}"
	default:
		return header + "{{range .Lines}}{{.ID}} {{.Source}}\n{{end}}"
	}
}
