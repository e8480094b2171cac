//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

var shaderSources = []string{
	"raygen.rgen",
	"miss.rmiss",
	"closesthit.rchit",
	"callable1.rcall",
	"callable2.rcall",
	"callable3.rcall",
}

// Compiles every ray tracing shader to SPIR-V.
func (Build) Shaders() error {
	for _, source := range shaderSources {
		input := fmt.Sprintf("assets/shaders/%s", source)
		output := fmt.Sprintf("assets/shaders/%s.spv", source)
		if _, err := executeCmd("glslc", withArgs("--target-env=vulkan1.2", input, "-o", output), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Builds the prisma binary.
func (Build) Binary() error {
	if _, err := executeCmd("go", withArgs("build", "-o", "prisma", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs go vet over the module.
func (Build) Vet() error {
	if _, err := executeCmd("go", withArgs("vet", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}
