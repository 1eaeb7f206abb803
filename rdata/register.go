package rdata

// init wires every concrete rdata type into the registry. CompressibleNames
// is set only for the small historic set RFC 1035 allowed to compress
// (§4.B): NS/CNAME/PTR/MD/MF/MB/MG/MR/MX/MINFO/SOA. Every other type,
// including DNAME and everything added after the original 1987 record
// set, keeps names uncompressed on the wire.
func init() {
	Register(TypeInfo{Code: TypeA, Name: "A", New: func() Rdata { return &A{} }})
	Register(TypeInfo{Code: TypeAAAA, Name: "AAAA", New: func() Rdata { return &AAAA{} }})

	Register(TypeInfo{Code: TypeNS, Name: "NS", New: newNameRdata(TypeNS, true), CompressibleNames: true})
	Register(TypeInfo{Code: TypeCNAME, Name: "CNAME", New: newNameRdata(TypeCNAME, true), CompressibleNames: true})
	Register(TypeInfo{Code: TypePTR, Name: "PTR", New: newNameRdata(TypePTR, true), CompressibleNames: true})
	Register(TypeInfo{Code: TypeMD, Name: "MD", New: newNameRdata(TypeMD, true), CompressibleNames: true})
	Register(TypeInfo{Code: TypeMF, Name: "MF", New: newNameRdata(TypeMF, true), CompressibleNames: true})
	Register(TypeInfo{Code: TypeMB, Name: "MB", New: newNameRdata(TypeMB, true), CompressibleNames: true})
	Register(TypeInfo{Code: TypeMG, Name: "MG", New: newNameRdata(TypeMG, true), CompressibleNames: true})
	Register(TypeInfo{Code: TypeMR, Name: "MR", New: newNameRdata(TypeMR, true), CompressibleNames: true})
	Register(TypeInfo{Code: TypeDNAME, Name: "DNAME", New: newNameRdata(TypeDNAME, false)})

	Register(TypeInfo{Code: TypeMX, Name: "MX", New: newPreferenceNameRdata(TypeMX, true, "exchange"), CompressibleNames: true})
	Register(TypeInfo{Code: TypeAFSDB, Name: "AFSDB", New: newPreferenceNameRdata(TypeAFSDB, false, "hostname")})
	Register(TypeInfo{Code: TypeRT, Name: "RT", New: newPreferenceNameRdata(TypeRT, false, "intermediate-host")})
	Register(TypeInfo{Code: TypeKX, Name: "KX", New: newPreferenceNameRdata(TypeKX, false, "exchanger")})

	Register(TypeInfo{Code: TypeMINFO, Name: "MINFO", New: newTwoNameRdata(TypeMINFO, true), CompressibleNames: true})
	Register(TypeInfo{Code: TypeRP, Name: "RP", New: newTwoNameRdata(TypeRP, false)})

	Register(TypeInfo{Code: TypeSOA, Name: "SOA", New: func() Rdata { return &SOA{} }, CompressibleNames: true})

	Register(TypeInfo{Code: TypeTXT, Name: "TXT", New: newTXTRdata(TypeTXT)})
	Register(TypeInfo{Code: TypeSPF, Name: "SPF", New: newTXTRdata(TypeSPF)})

	Register(TypeInfo{Code: TypeHINFO, Name: "HINFO", New: func() Rdata { return &HINFO{} }})
	Register(TypeInfo{Code: TypeX25, Name: "X25", New: func() Rdata { return &X25{} }})
	Register(TypeInfo{Code: TypeISDN, Name: "ISDN", New: func() Rdata { return &ISDN{} }})
	Register(TypeInfo{Code: TypeNAPTR, Name: "NAPTR", New: func() Rdata { return &NAPTR{} }})

	Register(TypeInfo{Code: TypeSRV, Name: "SRV", New: func() Rdata { return &SRV{} }})

	Register(TypeInfo{Code: TypeWKS, Name: "WKS", New: func() Rdata { return &WKS{} }})
	Register(TypeInfo{Code: TypeAPL, Name: "APL", New: func() Rdata { return &APL{} }})
	Register(TypeInfo{Code: TypeLOC, Name: "LOC", New: func() Rdata { return &LOC{} }})
	Register(TypeInfo{Code: TypeNULL, Name: "NULL", New: func() Rdata { return &NULL{} }})

	Register(TypeInfo{Code: TypeCERT, Name: "CERT", New: func() Rdata { return &CERT{} }})
	Register(TypeInfo{Code: TypeSSHFP, Name: "SSHFP", New: func() Rdata { return &SSHFP{} }})
	Register(TypeInfo{Code: TypeDHCID, Name: "DHCID", New: func() Rdata { return &DHCID{} }})
	Register(TypeInfo{Code: TypeTLSA, Name: "TLSA", New: func() Rdata { return &TLSA{} }})
	Register(TypeInfo{Code: TypeDNSKEY, Name: "DNSKEY", New: func() Rdata { return &DNSKEY{} }})
	Register(TypeInfo{Code: TypeKEY, Name: "KEY", New: func() Rdata { return &KEY{} }})
	Register(TypeInfo{Code: TypeDS, Name: "DS", New: func() Rdata { return &DS{} }})
	Register(TypeInfo{Code: TypeRRSIG, Name: "RRSIG", New: newRRSIG(TypeRRSIG)})
	Register(TypeInfo{Code: TypeSIG, Name: "SIG", New: newRRSIG(TypeSIG)})
	Register(TypeInfo{Code: TypeNSEC, Name: "NSEC", New: func() Rdata { return &NSEC{} }})
	Register(TypeInfo{Code: TypeNSEC3, Name: "NSEC3", New: func() Rdata { return &NSEC3{} }})
	Register(TypeInfo{Code: TypeNSEC3PARAM, Name: "NSEC3PARAM", New: func() Rdata { return &NSEC3PARAM{} }})

	Register(TypeInfo{Code: TypeTKEY, Name: "TKEY", New: func() Rdata { return &TKEY{} }})
	Register(TypeInfo{Code: TypeTSIG, Name: "TSIG", New: func() Rdata { return &TSIGRdata{} }})

	Register(TypeInfo{Code: TypeANY, Name: "ANY", New: func() Rdata { return &Generic{TypeCode: TypeANY} }})
}
