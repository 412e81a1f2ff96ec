package spec

import (
	"strings"
	"testing"
)

var launchJSON = `
{
    // Use IntelliSense to learn about possible attributes.
    "version": "0.2.0",
    "configurations": [
        {
            "name": "Darts-Toy",
            "type": "python",
            "request": "launch",
            "program": "${workspaceFolder}/scripts/main.py",
            "console": "integratedTerminal",
            "args": ["--algos", "darts"],
            "env": {"CUDA_VISIBLE_DEVICES": "0"},
        },
        {
            "name": "Txl-Train",
            "type": "python",
            "request": "launch",
            "program": "${workspaceFolder}/archai/nlp/nvidia_transformer_xl/train.py",
            "cwd": "${workspaceFolder}/archai/nlp/nvidia_transformer_xl",
            "args": ["--config", "dgx1_1gpu_fp16"],
        },
        {
            "name": "Attach",
            "type": "python",
            "request": "attach",
            "port": 5678,
        },
        {
            "name": "No Program",
            "type": "python",
            "request": "launch",
            "module": "pytest",
        },
    ]
}
`

func TestImportVSCode(t *testing.T) {

	c, err := ImportVSCode(strings.NewReader(launchJSON))
	if err != nil {
		t.Fatal(err)
	}

	// attach and module configurations are skipped
	if len(c.Profiles) != 2 {
		t.Fatal("expected 2 profiles, got", len(c.Profiles))
	}

	p, err := c.Profile("Darts-Toy")
	if err != nil {
		t.Fatal(err)
	}
	if p.EntryPoint != "scripts/main.py" {
		t.Fatal("workspaceFolder not stripped:", p.EntryPoint)
	}
	if !p.Tty {
		t.Fatal("integratedTerminal should map to tty")
	}
	if p.Env["CUDA_VISIBLE_DEVICES"] != "0" {
		t.Fatal("env not imported")
	}
	if len(p.Args) != 2 || p.Args[0] != "--algos" {
		t.Fatal("args not imported in order:", p.Args)
	}

	p, err = c.Profile("Txl-Train")
	if err != nil {
		t.Fatal(err)
	}
	if p.Workdir != "archai/nlp/nvidia_transformer_xl" {
		t.Fatal("cwd not imported:", p.Workdir)
	}
	if p.Tty {
		t.Fatal("no console means no tty")
	}
}

func TestImportVSCodeDuplicate(t *testing.T) {

	dup := `{
		"configurations": [
			{"name": "A", "request": "launch", "program": "a.py"},
			{"name": "A", "request": "launch", "program": "b.py"},
		]
	}`

	_, err := ImportVSCode(strings.NewReader(dup))
	if err == nil {
		t.Fatal("duplicate names must not import")
	}
}
