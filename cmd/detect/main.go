// Определение типа модели по содержимому директории.
// Запуск: go run ./cmd/detect -dir <model-directory>
// Для синтезирующих моделей: go run ./cmd/detect -dir <dir> -tts

package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"pocketspeech/models"
)

func main() {
	dir := flag.String("dir", "", "Model directory")
	kind := flag.String("kind", "auto", "Expected model kind (auto to detect)")
	quant := flag.String("quant", "", "Quantization preference: prefer-int8, prefer-full")
	tts := flag.Bool("tts", false, "Detect as a speech synthesis model")
	flag.Parse()

	if *dir == "" {
		log.Fatal("usage: detect -dir <model-directory> [-kind auto] [-quant prefer-int8] [-tts]")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *tts {
		k, err := models.ParseTtsKind(*kind)
		if err != nil {
			log.Fatal(err)
		}
		res := models.ResolveTts(*dir, k)
		enc.Encode(res)
		if !res.Ok {
			os.Exit(1)
		}
		return
	}

	k, err := models.ParseKind(*kind)
	if err != nil {
		log.Fatal(err)
	}
	q, err := models.ParseQuant(*quant)
	if err != nil {
		log.Fatal(err)
	}
	res := models.Resolve(*dir, q, k)
	enc.Encode(res)
	if !res.Ok {
		os.Exit(1)
	}
}
