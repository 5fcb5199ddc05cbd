package lexicon

// Languages lists every language of the expanded lexicon, source first.
var Languages = []string{
	"chagatai", "uzbek", "russian", "english", "german",
	"uyghur", "dari", "pashto", "farsi",
}

// Additions holds the translations added per language, keyed by term id.
var Additions = map[string]map[string][]string{
	"uyghur": {
		"ishq":     {"ئەشق", "مۇھەببەت"},
		"ko'ngul":  {"كۆڭۈل", "قەلب"},
		"hijron":   {"ھىجران", "ئايرىلىق"},
		"ma'rifat": {"مەرىپەت", "دانىشمەنلىك"},
		"yor":      {"يار", "سۆيۈملۈك"},
	},
	"dari": {
		"ishq":     {"عشق", "محبت"},
		"ko'ngul":  {"دل", "قلب"},
		"hijron":   {"هجران", "جدایی"},
		"ma'rifat": {"معرفت", "دانش"},
		"yor":      {"یار", "معشوق"},
	},
	"pashto": {
		"ishq":     {"عشق", "مینه"},
		"ko'ngul":  {"زړه", "دل"},
		"hijron":   {"جدایی", "لرېوالی"},
		"ma'rifat": {"پوهه", "معرفت"},
		"yor":      {"یار", "محبوب"},
	},
	"farsi": {
		"ishq":     {"عشق", "محبت"},
		"ko'ngul":  {"دل", "قلب"},
		"hijron":   {"هجران", "جدایی"},
		"ma'rifat": {"معرفت", "شناخت"},
		"yor":      {"یار", "معشوق"},
	},
}

// addedLanguages is the write order for Additions.
var addedLanguages = []string{"uyghur", "dari", "pashto", "farsi"}
