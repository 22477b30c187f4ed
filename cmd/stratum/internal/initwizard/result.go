package initwizard

type Result struct {
	ProjectName   string
	PythonVersion string
	LambdaName    string
	LibName       string
}

func DefaultResult(defaultName string) Result {
	return Result{
		ProjectName:   defaultName,
		PythonVersion: "3.13",
		LambdaName:    "hello_world",
		LibName:       "lib_common",
	}
}
