// Package models реализует определение типа модели по содержимому директории:
// классификацию семейства, выбор файлов с учётом квантизации и валидацию.
package models

import "fmt"

// Kind семейство распознающей модели (закрытое перечисление)
type Kind string

const (
	KindAuto           Kind = "auto"
	KindTransducer     Kind = "transducer"
	KindNemoTransducer Kind = "nemo-transducer"
	KindParaformer     Kind = "paraformer"
	KindNemoCtc        Kind = "nemo-ctc"
	KindWenetCtc       Kind = "wenet-ctc"
	KindSenseVoice     Kind = "sense-voice"
	KindGenericCtc     Kind = "generic-ctc"
	KindWhisper        Kind = "whisper"
	KindFunAsrNano     Kind = "funasr-nano"
	KindFireRedAsr     Kind = "fire-red-asr"
	KindMoonshine      Kind = "moonshine"
	KindDolphin        Kind = "dolphin"
	KindCanary         Kind = "canary"
	KindOmnilingual    Kind = "omnilingual"
	KindMedAsr         Kind = "medasr"
	KindTeleSpeechCtc  Kind = "telespeech-ctc"
	KindUnknown        Kind = "unknown"
)

// TtsKind семейство синтезирующей модели
type TtsKind string

const (
	TtsKindAuto     TtsKind = "auto"
	TtsKindVits     TtsKind = "vits"
	TtsKindMatcha   TtsKind = "matcha"
	TtsKindKokoro   TtsKind = "kokoro"
	TtsKindKitten   TtsKind = "kitten"
	TtsKindZipvoice TtsKind = "zipvoice"
	TtsKindUnknown  TtsKind = "unknown"
)

// allKinds все распознающие семейства в порядке объявления (для ParseKind)
var allKinds = []Kind{
	KindTransducer, KindNemoTransducer, KindParaformer, KindNemoCtc,
	KindWenetCtc, KindSenseVoice, KindGenericCtc, KindWhisper,
	KindFunAsrNano, KindFireRedAsr, KindMoonshine, KindDolphin,
	KindCanary, KindOmnilingual, KindMedAsr, KindTeleSpeechCtc,
}

var allTtsKinds = []TtsKind{
	TtsKindVits, TtsKindMatcha, TtsKindKokoro, TtsKindKitten, TtsKindZipvoice,
}

// ParseKind разбирает строковое имя семейства.
// Пустая строка и "auto" дают KindAuto; незнакомое имя — ошибка.
func ParseKind(s string) (Kind, error) {
	if s == "" || s == string(KindAuto) {
		return KindAuto, nil
	}
	for _, k := range allKinds {
		if s == string(k) {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown model kind: %q", s)
}

// ParseTtsKind разбирает строковое имя синтезирующего семейства
func ParseTtsKind(s string) (TtsKind, error) {
	if s == "" || s == string(TtsKindAuto) {
		return TtsKindAuto, nil
	}
	for _, k := range allTtsKinds {
		if s == string(k) {
			return k, nil
		}
	}
	return TtsKindUnknown, fmt.Errorf("unknown tts model kind: %q", s)
}

// IsStreaming сообщает, поддерживает ли семейство потоковое распознавание.
// Онлайн-декодер есть только у трансдьюсерных семейств; остальные
// декодируются целыми высказываниями.
func (k Kind) IsStreaming() bool {
	return k == KindTransducer || k == KindNemoTransducer
}

// SupportsHotwords сообщает, поддерживает ли семейство подсказки hotwords.
// Движок применяет их только к трансдьюсерным моделям.
func (k Kind) SupportsHotwords() bool {
	return k == KindTransducer || k == KindNemoTransducer
}

// QuantPreference предпочтение квантизации при выборе варианта файла
type QuantPreference string

const (
	QuantDefault    QuantPreference = ""            // int8 если есть
	QuantPreferInt8 QuantPreference = "prefer-int8" // int8 если есть
	QuantPreferFull QuantPreference = "prefer-full" // полная точность если есть
)

// ParseQuant разбирает строковое предпочтение квантизации.
// Пустая строка — предпочтение по умолчанию; незнакомое имя — ошибка,
// а не молчаливый откат к умолчанию.
func ParseQuant(s string) (QuantPreference, error) {
	switch q := QuantPreference(s); q {
	case QuantDefault, QuantPreferInt8, QuantPreferFull:
		return q, nil
	}
	return QuantDefault, fmt.Errorf("unknown quantization preference: %q", s)
}

// variantOrder возвращает имена вариантов файла в порядке предпочтения.
// base — имя без расширения ("model", "encoder"), ext — расширение (".onnx").
func (q QuantPreference) variantOrder(base, ext string) []string {
	int8Name := base + ".int8" + ext
	fullName := base + ext
	if q == QuantPreferFull {
		return []string{fullName, int8Name}
	}
	// int8 по умолчанию: меньше занимает и быстрее на мобильных CPU
	return []string{int8Name, fullName}
}
