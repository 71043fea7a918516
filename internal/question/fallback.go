package question

import "github.com/stemsi/quizlock/internal/model"

// fallbackBank is the availability floor of the game: it is served whenever
// the remote generator is unconfigured, unreachable, or returns unusable data.
var fallbackBank = []model.Question{
	{
		Prompt:       "Hvaða ár gaus eldfjallið Laki (Skaftáreldar)?",
		Options:      []string{"1783", "1755", "1801", "1698"},
		CorrectIndex: 0,
		Difficulty:   model.DifficultyHard,
	},
	{
		Prompt:       "Hver var fyrsti ráðherra Íslands undir heimastjórn?",
		Options:      []string{"Jón Sigurðsson", "Hannes Hafstein", "Björn Jónsson", "Sveinn Björnsson"},
		CorrectIndex: 1,
		Difficulty:   model.DifficultyMedium,
	},
	{
		Prompt:       "Hvað heitir hæsti foss Íslands (mælt 2011)?",
		Options:      []string{"Glymur", "Háifoss", "Morsárfoss", "Dettifoss"},
		CorrectIndex: 2,
		Difficulty:   model.DifficultyHard,
	},
	{
		Prompt:       "Í hvaða handriti eru Völuspá og Hávamál varðveitt?",
		Options:      []string{"Flateyjarbók", "Konungsbók (Codex Regius)", "Möðruvallabók", "Skarðsbók"},
		CorrectIndex: 1,
		Difficulty:   model.DifficultyHard,
	},
	{
		Prompt:       "Hvaða ár voru síðustu aftökurnar á Íslandi framkvæmdar?",
		Options:      []string{"1805", "1830", "1855", "1874"},
		CorrectIndex: 1,
		Difficulty:   model.DifficultyMedium,
	},
	{
		Prompt:       "Hver samdi leikritið 'Galdra-Loftur'?",
		Options:      []string{"Jóhann Sigurjónsson", "Davíð Stefánsson", "Matthías Jochumsson", "Einar Benediktsson"},
		CorrectIndex: 0,
		Difficulty:   model.DifficultyMedium,
	},
	{
		Prompt:       "Hvað heitir stærsta eyjan við Ísland (fyrir utan Heimaey)?",
		Options:      []string{"Hrísey", "Grímsey", "Flatey", "Viðey"},
		CorrectIndex: 0,
		Difficulty:   model.DifficultyMedium,
	},
	{
		Prompt:       "Hvenær var Alþingi endurreist í Reykjavík?",
		Options:      []string{"1845", "1874", "1904", "1918"},
		CorrectIndex: 0,
		Difficulty:   model.DifficultyHard,
	},
	{
		Prompt:       "Hvaða jökull er sá þriðji stærsti á Íslandi?",
		Options:      []string{"Hofsjökull", "Langjökull", "Mýrdalsjökull", "Drangajökull"},
		CorrectIndex: 0,
		Difficulty:   model.DifficultyHard,
	},
	{
		Prompt:       "Hver var fyrsta konan til að taka sæti á Alþingi?",
		Options:      []string{"Bríet Bjarnhéðinsdóttir", "Ingibjörg H. Bjarnason", "Auður Auðuns", "Ragnhildur Helgadóttir"},
		CorrectIndex: 1,
		Difficulty:   model.DifficultyMedium,
	},
}

// Fallback returns a deep copy of the built-in question bank.
func Fallback() []model.Question {
	return cloneQuestions(fallbackBank)
}

func cloneQuestions(src []model.Question) []model.Question {
	out := make([]model.Question, len(src))
	for i, q := range src {
		out[i] = q
		out[i].Options = append([]string(nil), q.Options...)
	}
	return out
}
