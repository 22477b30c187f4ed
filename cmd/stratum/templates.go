package main

import "text/template"

var handlerTemplate = template.Must(template.New("app.py").Parse(`import json


def handler(event, context):
    body = json.loads(event.get("body") or "{}")
    return {
        "statusCode": 200,
        "body": json.dumps({"message": "hello from {{.LambdaName}}", "input": body}),
    }
`))

var eventTemplate = template.Must(template.New("event.json").Parse(`{
  "body": "{}"
}
`))

var libManifestTemplate = template.Must(template.New("pyproject.toml").Parse(`[project]
name = "{{.LibName}}"
version = "0.1.0"
description = "Shared code for {{.ProjectName}}"
requires-python = ">={{.PythonVersion}}"
dependencies = []

[build-system]
requires = ["hatchling"]
build-backend = "hatchling.build"
`))

var libInitTemplate = template.Must(template.New("__init__.py").Parse(`def greet(name: str) -> str:
    return f"hello, {name}"
`))

var libTestTemplate = template.Must(template.New("test_lib.py").Parse(`from {{.LibName}} import greet


def test_greet():
    assert greet("world") == "hello, world"
`))

var ignoreTemplate = template.Must(template.New(".stratumignore").Parse(`# Paths listed here are excluded from layer change detection.
.venv
`))
