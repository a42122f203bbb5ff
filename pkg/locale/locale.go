// Package locale holds the fixed strings shown to users.
//
// Every failure of the mediation layer ends in one of these messages, so the
// user never sees internals. Kyrgyz is the fallback language.
package locale

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/teller/pkg/domain"
)

// Key identifies a fixed message.
type Key string

const (
	KeyDispatchFailed   Key = "dispatch_failed"
	KeyTechnicalError   Key = "technical_error"
	KeyUnknownOperation Key = "unknown_operation"
	KeyEmptyResult      Key = "empty_result"
	KeyCancelled        Key = "cancelled"
	KeyNothingToCancel  Key = "nothing_to_cancel"
	KeyInputRejected    Key = "input_rejected"
	KeyAskTransfer      Key = "ask_transfer"
	KeyAskAmount        Key = "ask_amount"
	KeyAskRecipient     Key = "ask_recipient"
	KeyAskGeneric       Key = "ask_generic"
	KeyDefaultName      Key = "default_name"
)

// Fallback is used for languages without a table.
const Fallback = domain.Kyrgyz

var messages = map[domain.Language]map[Key]string{
	domain.Kyrgyz: {
		KeyDispatchFailed:   "Кечиресиз, операция ишке ашкан жок. Кайра аракет кылыңыз же банкка кайрылыңыз.",
		KeyTechnicalError:   "Кечиресиз, техникалык ката кетти. Бир аздан кийин кайра аракет кылыңыз же банкка түздөн-түз кайрылыңыз.",
		KeyUnknownOperation: "Кечиресиз, сурооңузду түшүнгөн жокмун. Башкача жазып көрүңүз.",
		KeyEmptyResult:      "Маалымат табылган жок.",
		KeyCancelled:        "Макул, операция жокко чыгарылды.",
		KeyNothingToCancel:  "Жокко чыгара турган операция жок.",
		KeyInputRejected:    "Билдирүү өтө узун же туура эмес. Кыскараак жазып көрүңүз.",
		KeyAskTransfer:      "Кимге жана канча акча которгуңуз келет?",
		KeyAskAmount:        "Канча акча которгуңуз келет?",
		KeyAskRecipient:     "Кимге которгуңуз келет?",
		KeyAskGeneric:       "Сураныч, төмөнкүнү көрсөтүңүз: %s",
		KeyDefaultName:      "колдонуучу",
	},
	domain.Russian: {
		KeyDispatchFailed:   "Извините, операцию выполнить не удалось. Попробуйте ещё раз или обратитесь в банк.",
		KeyTechnicalError:   "Извините, произошла техническая ошибка. Попробуйте немного позже или обратитесь в банк.",
		KeyUnknownOperation: "Извините, я не понял запрос. Попробуйте сформулировать иначе.",
		KeyEmptyResult:      "Информация не найдена.",
		KeyCancelled:        "Хорошо, операция отменена.",
		KeyNothingToCancel:  "Нет операции для отмены.",
		KeyInputRejected:    "Сообщение слишком длинное или некорректное. Попробуйте написать короче.",
		KeyAskTransfer:      "Кому и сколько вы хотите перевести?",
		KeyAskAmount:        "Сколько вы хотите перевести?",
		KeyAskRecipient:     "Кому вы хотите перевести?",
		KeyAskGeneric:       "Пожалуйста, укажите: %s",
		KeyDefaultName:      "клиент",
	},
	domain.English: {
		KeyDispatchFailed:   "Sorry, the operation could not be completed. Please try again or contact the bank.",
		KeyTechnicalError:   "Sorry, a technical error occurred. Please try again a bit later or contact the bank.",
		KeyUnknownOperation: "Sorry, I did not understand the request. Please try rephrasing it.",
		KeyEmptyResult:      "No information was found.",
		KeyCancelled:        "Okay, the operation was cancelled.",
		KeyNothingToCancel:  "There is no operation to cancel.",
		KeyInputRejected:    "The message is too long or malformed. Please write a shorter one.",
		KeyAskTransfer:      "Who would you like to send money to, and how much?",
		KeyAskAmount:        "How much would you like to send?",
		KeyAskRecipient:     "Who would you like to send the money to?",
		KeyAskGeneric:       "Please specify: %s",
		KeyDefaultName:      "customer",
	},
}

// Text returns the message for key in lang.
func Text(lang domain.Language, key Key) string {
	if table, ok := messages[lang]; ok {
		if s, ok := table[key]; ok {
			return s
		}
	}
	return messages[Fallback][key]
}

// Textf formats a message that takes arguments.
func Textf(lang domain.Language, key Key, args ...any) string {
	return fmt.Sprintf(Text(lang, key), args...)
}

// Languages lists the supported languages.
func Languages() []domain.Language {
	return []domain.Language{domain.Kyrgyz, domain.Russian, domain.English}
}

// LanguageName is the English name of lang, used in model instructions.
func LanguageName(lang domain.Language) string {
	switch lang {
	case domain.Russian:
		return "Russian"
	case domain.English:
		return "English"
	default:
		return "Kyrgyz"
	}
}

// clarifications maps an operation and its sorted, comma-joined missing
// parameters to a dedicated question.
var clarifications = map[string]map[string]Key{
	"transfer_money": {
		"amount,to_name": KeyAskTransfer,
		"amount":         KeyAskAmount,
		"to_name":        KeyAskRecipient,
	},
}

// Clarification returns the question asking for the missing parameters of op.
// describe names a parameter for the generic question; nil uses the raw name.
func Clarification(lang domain.Language, op string, missing []string, describe func(param string) string) string {
	sorted := slices.Clone(missing)
	slices.Sort(sorted)
	if key, ok := clarifications[op][strings.Join(sorted, ",")]; ok {
		return Text(lang, key)
	}

	names := make([]string, len(missing))
	for i, p := range missing {
		names[i] = p
		if describe != nil {
			if d := describe(p); d != "" {
				names[i] = d
			}
		}
	}
	return Textf(lang, KeyAskGeneric, strings.Join(names, ", "))
}
