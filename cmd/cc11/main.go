package main

import (
	"fmt"
	"os"
	"strings"

	cc11 "github.com/aoweichenn/cc11"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: cc11 [-I dir] [-D name[=value]] [-U name] [-o outfile] <file>")
	os.Exit(1)
}

func main() {
	var dirs, defines, undefines []string
	outPath := ""
	file := ""

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-I" || a == "-D" || a == "-U" || a == "-o":
			i++
			if i >= len(args) {
				fmt.Fprintf(os.Stderr, "missing argument for %s\n", a)
				usage()
			}
			switch a {
			case "-I":
				dirs = append(dirs, args[i])
			case "-D":
				defines = append(defines, args[i])
			case "-U":
				undefines = append(undefines, args[i])
			case "-o":
				outPath = args[i]
			}
		case strings.HasPrefix(a, "-I"):
			dirs = append(dirs, a[2:])
		case strings.HasPrefix(a, "-D"):
			defines = append(defines, a[2:])
		case strings.HasPrefix(a, "-U"):
			undefines = append(undefines, a[2:])
		case strings.HasPrefix(a, "-o"):
			outPath = a[2:]
		case strings.HasPrefix(a, "-"):
			fmt.Fprintf(os.Stderr, "unknown option %s\n", a)
			usage()
		default:
			if file != "" {
				usage()
			}
			file = a
		}
	}
	if file == "" {
		usage()
	}

	p, err := cc11.New(cc11.Config{
		IncludeDirs: dirs,
		Defines:     defines,
		Undefines:   undefines,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	toks, err := p.PreprocessFile(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	text := cc11.Text(toks)
	if outPath == "" {
		fmt.Print(text)
		return
	}
	if err := os.WriteFile(outPath, []byte(text), 0644); err != nil {
		fmt.Fprintln(os.Stderr, "Error writing file:", err)
		os.Exit(1)
	}
}
