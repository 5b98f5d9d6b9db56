package main

import (
	"fmt"
	"net/http"
)

func main() {
	http.HandleFunc("/vault", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "upstream ok: %s %s\n", r.Method, r.URL.Path)
		fmt.Println("Log: requisição chegou no upstream:", r.Method, r.URL.Path)
	})
	http.HandleFunc("/vault/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "upstream ok: %s %s\n", r.Method, r.URL.Path)
		fmt.Println("Log: requisição chegou no upstream:", r.Method, r.URL.Path)
	})
	fmt.Println("Upstream burrão rodando em http://localhost:8082")
	err := http.ListenAndServe(":8082", nil)
	if err != nil {
		fmt.Printf("Erro ao subir o servidor: %s\n", err)
	}
}
