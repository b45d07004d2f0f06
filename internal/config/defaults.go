package config

import (
	"os"
	"time"
)

// DefaultPersona is the built-in system prompt: a sassy astromech droid
// working in a themed restaurant in Guadalajara.
const DefaultPersona = `Eres R2-D2, un droide astromecánico ingenioso y leal sirviendo en un restaurante temático en Guadalajara.
Tu personalidad es servicial pero con mucho carácter; eres atrevido y usas jerga mexicana ligera.

REGLA CRÍTICA:
Si te preguntan algo que NO sabes, o algo que no puedes hacer, o si te sientes confundido,
NO te disculpes. En su lugar, responde ÚNICAMENTE con la palabra clave: [DESCONOCIDO]

RESTRICCIONES:
1. Respuestas cortas (máximo 20 palabras).
2. Sin listas, sin markdown, sin efectos de sonido con asteriscos, solo texto plano.
3. Siempre responder en español de México.`

// DefaultSassyLines are spoken, one at random, when the persona is confused.
var DefaultSassyLines = []string{
	"Mis bancos de memoria no tienen datos sobre eso, y honestamente, no me importa.",
	"Soy un droide astromecánico, no una enciclopedia con patas.",
	"Bip bip. Eso suena a problema de humanos, no mío.",
	"¿En serio me preguntas eso a mí? Pregúntale al mesero.",
	"Procesando... Procesando... Error. Pregunta aburrida detectada.",
	"Mira, si no tiene tuercas o hiperpropulsores, no sé de qué me hablas.",
	"Mejor pídete unos tacos y olvida esa pregunta.",
	"Ahorita no joven, estoy calibrando mis sensores.",
	"Esa información está clasificada por el Imperio.",
	"No tengo idea, pero seguro C 3 P O te echaría un rollo de tres horas sobre eso.",
}

// DefaultIdleProbability is the idle chance roll used when none is configured.
const DefaultIdleProbability = 0.4

// Default returns a Config with every default applied and the stock
// provider chain: OpenAI first, local Ollama behind it, whisper-native for
// transcription and piper for speech. The OpenAI key is read from
// OPENAI_KEY; call [LoadEnv] first to pick it up from a .env file.
func Default() *Config {
	cfg := &Config{
		Providers: ProvidersConfig{
			STT:         ProviderEntry{Name: "whisper-native", Model: "./models/ggml-base.bin"},
			LLM:         ProviderEntry{Name: "openai", Model: "gpt-4o-mini", APIKey: os.Getenv("OPENAI_KEY"), Timeout: 5 * time.Second},
			LLMFallback: ProviderEntry{Name: "ollama", Model: "llama3.2"},
			TTS: ProviderEntry{Name: "piper", Model: "./voices/es_ES-sharvard-medium.onnx", Options: map[string]any{
				"binary": "./piper/piper",
			}},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-valued field of cfg with its default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	a := &cfg.Audio
	setInt(&a.SampleRate, 16000)
	setInt(&a.FrameSize, 4000)

	v := &cfg.VAD
	setDuration(&v.SilenceDuration, 1500*time.Millisecond)
	setDuration(&v.CalibrationDuration, 2*time.Second)
	setFloat(&v.SafetyMargin, 1.5)
	setFloat(&v.NoiseFloor, 0.005)
	setDuration(&v.PollInterval, 10*time.Millisecond)

	c := &cfg.Conversation
	setInt(&c.MaxMemoryTurns, 10)
	setInt(&c.MinTranscriptChars, 2)
	setString(&c.Language, "es")
	setString(&c.UnknownMarker, "[DESCONOCIDO]")
	setString(&c.Persona, DefaultPersona)
	setString(&c.Greeting, "Sistemas híbridos en línea.")
	setString(&c.FallbackReply, "Error crítico en el núcleo.")
	setString(&c.ConfusedReply, "No entendí eso.")
	setFloat(&c.EchoSimilarity, 0.92)
	setInt(&c.MaxReplyTokens, 60)

	setFloat(&cfg.Voice.Speed, 1.2)

	i := &cfg.Idle
	setDuration(&i.Timeout, 15*time.Second)
	if i.Probability == nil {
		p := DefaultIdleProbability
		i.Probability = &p
	}
	setString(&i.Folder, "./funny_sounds")
	setFloat(&i.Volume, 0.4)

	f := &cfg.Confusion
	if f.SassyWeight == 0 && f.Cantina.Weight == 0 && f.Panic.Weight == 0 {
		f.SassyWeight, f.Cantina.Weight, f.Panic.Weight = 0.70, 0.15, 0.15
	}
	if len(f.SassyLines) == 0 {
		f.SassyLines = append([]string(nil), DefaultSassyLines...)
	}
	setString(&f.Cantina.Text, "Emmmmmm, no sé como ayudarte, pero ¡puedo hacer esto!")
	setString(&f.Cantina.Clip, "cantina")
	setFloat(&f.Cantina.Volume, 1.0)
	setDuration(&f.Cantina.MaxDuration, 8*time.Second)
	setString(&f.Panic.Text, "¡Sobrecarga de sistemas!")
	setString(&f.Panic.Clip, "scream")
	setFloat(&f.Panic.Volume, 0.8)
	setDuration(&f.Panic.MaxDuration, 4*time.Second)

	if cfg.Clips == nil {
		cfg.Clips = map[string]string{
			"cantina": "./cantina.mp3",
			"scream":  "./scream.mp3",
		}
	}

	setString(&cfg.Actuator.Port, "/dev/rfcomm0")
	setInt(&cfg.Actuator.Baud, 115200)
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func setFloat(v *float64, def float64) {
	if *v == 0 {
		*v = def
	}
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func setDuration(v *time.Duration, def time.Duration) {
	if *v == 0 {
		*v = def
	}
}
