package schema

const defaultLang = "en"

func lookup(m map[string]map[string]string, code, lang string) (string, bool) {
	byLang := m[code]
	if byLang == nil {
		return "", false
	}
	if s, ok := byLang[lang]; ok && s != "" {
		return s, true
	}
	if s, ok := byLang[defaultLang]; ok && s != "" {
		return s, true
	}
	return "", false
}

// QuestionText returns the localized text of q, falling back to its base text.
func (r *Registry) QuestionText(q *Question, lang string) string {
	if s, ok := r.questionText[q.Code][lang]; ok && s != "" {
		return s
	}
	return q.Text
}

// OptionLabel returns the localized label of o, falling back to its base label.
func (r *Registry) OptionLabel(o *Option, lang string) string {
	if s, ok := r.optionText[o.Code][lang]; ok && s != "" {
		return s
	}
	return o.Label
}

// RedFlagLabel falls back to the default language, then to the code.
func (r *Registry) RedFlagLabel(code, lang string) string {
	rf := r.RedFlags[code]
	if rf == nil {
		return code
	}
	if s := rf.Labels[lang]; s != "" {
		return s
	}
	if s := rf.Labels[defaultLang]; s != "" {
		return s
	}
	return code
}

func (r *Registry) Message(code, lang string) string {
	s, _ := lookup(r.messages, code, lang)
	return s
}

func (r *Registry) UIString(key, lang, def string) string {
	if s, ok := lookup(r.uiStrings, key, lang); ok {
		return s
	}
	return def
}
